package extractor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Chedly25/newTrip/internal/domain"
	openai "github.com/Chedly25/newTrip/internal/infra/openai"
)

type stubChatClient struct {
	resp  openai.ChatCompletionResponse
	err   error
	calls int
	last  openai.ChatCompletionRequest
}

func (s *stubChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.calls++
	s.last = req
	return s.resp, s.err
}

func completionWith(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Role: "assistant", Content: content}}},
	}
}

func TestOpenAIExtractParsesCandidates(t *testing.T) {
	stub := &stubChatClient{resp: completionWith(`{"places":[
		{"name":"Cascade d'Angon","type":"viewpoint","location_hint":"Talloires","city":"Annecy","lat":45.8403,"lon":6.2209,"sentiment":0.9,"confidence":0.85},
		{"name":"","type":"other","sentiment":0,"confidence":0.5},
		{"name":"Chez Simone","type":"bouffe","city":"Nice","lat":null,"lon":null,"sentiment":1.4,"confidence":0.6}
	]}`)}
	ex := NewOpenAI(stub, "test-model", time.Second, 2000)

	cands, err := ex.Extract(context.Background(), domain.Mention{SourceID: "m-1", Text: "Allez voir la cascade."})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	first := cands[0]
	if first.Name != "Cascade d'Angon" || first.Type != domain.PlaceViewpoint {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if first.Coords == nil || first.Coords.Lat != 45.8403 {
		t.Fatalf("coordinates lost: %+v", first.Coords)
	}
	if first.SourceID != "m-1" {
		t.Fatalf("source id not stamped: %q", first.SourceID)
	}
	second := cands[1]
	if second.Type != domain.PlaceOther {
		t.Fatalf("unknown type should fall back to other, got %q", second.Type)
	}
	if second.Coords != nil {
		t.Fatalf("null coordinates should stay nil")
	}
	if second.Sentiment != 1 {
		t.Fatalf("sentiment not clamped: %v", second.Sentiment)
	}
	if stub.last.ResponseFormat == nil || stub.last.ResponseFormat.Type != openai.ResponseFormatTypeJSONObject {
		t.Fatalf("json response format not requested")
	}
}

func TestOpenAIExtractEmptyText(t *testing.T) {
	stub := &stubChatClient{}
	ex := NewOpenAI(stub, "test-model", time.Second, 2000)
	cands, err := ex.Extract(context.Background(), domain.Mention{Text: "  "})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if cands != nil || stub.calls != 0 {
		t.Fatalf("empty text should short-circuit, calls=%d", stub.calls)
	}
}

func TestOpenAIExtractRateLimited(t *testing.T) {
	stub := &stubChatClient{err: &openai.APIError{StatusCode: http.StatusTooManyRequests, Message: "quota"}}
	ex := NewOpenAI(stub, "test-model", time.Second, 2000)
	_, err := ex.Extract(context.Background(), domain.Mention{Text: "texte"})
	if !errors.Is(err, domain.ErrExtractionRateLimited) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
}

func TestOpenAIExtractServerError(t *testing.T) {
	stub := &stubChatClient{err: &openai.APIError{StatusCode: http.StatusInternalServerError}}
	ex := NewOpenAI(stub, "test-model", time.Second, 2000)
	_, err := ex.Extract(context.Background(), domain.Mention{Text: "texte"})
	if !errors.Is(err, domain.ErrExtractionUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestOpenAIExtractMalformedJSON(t *testing.T) {
	stub := &stubChatClient{resp: completionWith("désolé, je ne peux pas")}
	ex := NewOpenAI(stub, "test-model", time.Second, 2000)
	_, err := ex.Extract(context.Background(), domain.Mention{Text: "texte"})
	if !errors.Is(err, domain.ErrExtractionUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestOpenAIExtractTruncatesLongText(t *testing.T) {
	stub := &stubChatClient{resp: completionWith(`{"places":[]}`)}
	ex := NewOpenAI(stub, "test-model", time.Second, 50)
	long := "Première phrase courte. "
	for i := 0; i < 20; i++ {
		long += "Encore une phrase qui rallonge le message. "
	}
	if _, err := ex.Extract(context.Background(), domain.Mention{Text: long}); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len([]rune(stub.last.Messages[1].Content)) > len([]rune(long)) {
		t.Fatalf("prompt longer than source text")
	}
}

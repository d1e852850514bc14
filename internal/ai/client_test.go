package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zacharias1219/gradeflow/internal/model"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	logger := zaptest.NewLogger(t)
	_, err := NewClient(Config{}, logger)
	require.Error(t, err)
}

func TestParseAnalysis(t *testing.T) {
	raw := `{
		"steps": [{"step_number": 1, "description": "expand", "is_correct": true, "partial_credit": 0.9}],
		"strengths": ["clear"],
		"feedback": "good",
		"mathematical_reasoning": 0.8,
		"conceptual_understanding": 0.7,
		"presentation": 0.6
	}`

	analysis, err := ParseAnalysis(raw)
	require.NoError(t, err)
	require.Len(t, analysis.Steps, 1)
	require.Equal(t, 0.9, analysis.Steps[0].PartialCredit)
	require.Equal(t, []string{"clear"}, analysis.Strengths)
	require.Equal(t, 0.8, analysis.MathematicalReasoning)
}

func TestParseAnalysis_CodeFences(t *testing.T) {
	raw := "```json\n{\"steps\": [], \"feedback\": \"fenced\"}\n```"

	analysis, err := ParseAnalysis(raw)
	require.NoError(t, err)
	require.Equal(t, "fenced", analysis.Feedback)
}

func TestParseAnalysis_SurroundingProse(t *testing.T) {
	raw := `Here is my evaluation:
{"steps": [{"step_number": 1, "partial_credit": 1.0}], "feedback": "embedded"}
Let me know if you need more detail.`

	analysis, err := ParseAnalysis(raw)
	require.NoError(t, err)
	require.Equal(t, "embedded", analysis.Feedback)
	require.Len(t, analysis.Steps, 1)
}

func TestParseAnalysis_NoJSON(t *testing.T) {
	_, err := ParseAnalysis("the answer looks fine to me")
	require.Error(t, err)
}

func TestParseAnalysis_MalformedJSON(t *testing.T) {
	_, err := ParseAnalysis(`{"steps": [`)
	require.Error(t, err)
}

func chatResponse(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func TestClient_ExtractText(t *testing.T) {
	logger := zaptest.NewLogger(t)

	var gotAuth string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(chatResponse("Extracted answer text")))
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL}, logger)
	require.NoError(t, err)

	text, err := client.ExtractText(context.Background(), []byte("fake image"), "")
	require.NoError(t, err)
	require.Equal(t, "Extracted answer text", text)
	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, defaultModel, gotBody["model"])
}

func TestClient_AnalyzeAnswer(t *testing.T) {
	logger := zaptest.NewLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse(`{"steps": [{"step_number": 1, "partial_credit": 0.7}], "feedback": "ok"}`)))
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL}, logger)
	require.NoError(t, err)

	analysis, err := client.AnalyzeAnswer(context.Background(), "Solve x+1=2", "x=1", model.Rubric{})
	require.NoError(t, err)
	require.Len(t, analysis.Steps, 1)
	require.Equal(t, 0.7, analysis.Steps[0].PartialCredit)
}

func TestClient_HTTPErrorStatus(t *testing.T) {
	logger := zaptest.NewLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL}, logger)
	require.NoError(t, err)

	_, err = client.ExtractText(context.Background(), []byte("img"), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestClient_EmptyChoices(t *testing.T) {
	logger := zaptest.NewLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL}, logger)
	require.NoError(t, err)

	_, err = client.ExtractText(context.Background(), []byte("img"), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choice content")
}

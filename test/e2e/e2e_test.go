//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

// Exercises a running server end to end: guest auth, catalog browsing,
// a full answer-and-submit session, and the attempt history that results.
// The server must be started beforehand with a seeded catalog
// (go run ./cmd/seed-exams && go run ./cmd/server).

const defaultBaseURL = "http://localhost:8080/api/v1"

var (
	baseURL string
	token   string
	examID  string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	os.Exit(m.Run())
}

func TestE2EFlow(t *testing.T) {
	// Step 1: Open a guest session
	t.Run("GuestSession", func(t *testing.T) {
		resp, err := post("/auth/session", map[string]string{"name": "E2E Runner"}, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Token string `json:"token"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		token = body.Data.Token
		if token == "" {
			t.Fatal("token missing")
		}
	})

	// Step 2: List exams and pick one
	t.Run("ListExams", func(t *testing.T) {
		resp, err := get("/exams", token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Exams []struct {
					ID string `json:"id"`
				} `json:"exams"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if len(body.Data.Exams) == 0 {
			t.Fatal("catalog is empty, seed it before running e2e")
		}
		examID = body.Data.Exams[0].ID
	})

	// Step 3: Fetch the exam; the response must not leak answer keys
	var questions []struct {
		ID      string   `json:"id"`
		Options []string `json:"options"`
	}
	t.Run("GetExam", func(t *testing.T) {
		resp, err := get("/exams/"+examID, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		raw := readBody(resp)
		if bytes.Contains([]byte(raw), []byte("correct_answer")) {
			t.Fatal("exam response leaks the answer key")
		}

		var body struct {
			Data struct {
				Exam struct {
					Questions []struct {
						ID      string   `json:"id"`
						Options []string `json:"options"`
					} `json:"questions"`
				} `json:"exam"`
			} `json:"data"`
		}
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			t.Fatalf("json decode: %v", err)
		}
		questions = body.Data.Exam.Questions
		if len(questions) == 0 {
			t.Fatal("exam has no questions")
		}
	})

	// Step 4: Start a session
	t.Run("StartSession", func(t *testing.T) {
		resp, err := post(fmt.Sprintf("/exams/%s/session", examID), nil, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 4b: Starting again while in progress must conflict
	t.Run("StartSessionConflict", func(t *testing.T) {
		resp, err := post(fmt.Sprintf("/exams/%s/session", examID), nil, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409, got %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 5: Answer every question with its first option
	t.Run("AnswerQuestions", func(t *testing.T) {
		for _, q := range questions {
			resp, err := put("/session/answer", map[string]any{
				"question_id": q.ID,
				"option":      q.Options[0],
			}, token)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("answer %s: status %d", q.ID, resp.StatusCode)
			}
		}
	})

	// Step 6: Submit and verify the score payload
	t.Run("Submit", func(t *testing.T) {
		resp, err := post("/session/submit", nil, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Outcome struct {
					Score          int `json:"score"`
					TotalQuestions int `json:"total_questions"`
				} `json:"outcome"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Outcome.Score < 0 || body.Data.Outcome.Score > 100 {
			t.Errorf("score out of range: %d", body.Data.Outcome.Score)
		}
		if body.Data.Outcome.TotalQuestions != len(questions) {
			t.Errorf("total %d, want %d", body.Data.Outcome.TotalQuestions, len(questions))
		}
	})

	// Step 7: The attempt must now appear in history
	t.Run("AttemptRecorded", func(t *testing.T) {
		// Persistence is async; give the engine a moment.
		deadline := time.Now().Add(3 * time.Second)
		for {
			resp, err := get("/attempts/"+examID, token)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode == http.StatusOK {
				resp.Body.Close()
				return
			}
			resp.Body.Close()
			if time.Now().After(deadline) {
				t.Fatalf("attempt never appeared, last status %d", resp.StatusCode)
			}
			time.Sleep(100 * time.Millisecond)
		}
	})

	// Step 8: Retake resets and a fresh submit requires answers
	t.Run("RetakeThenIncompleteSubmit", func(t *testing.T) {
		resp, err := post(fmt.Sprintf("/exams/%s/retake", examID), nil, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("retake status %d", resp.StatusCode)
		}

		submitResp, err := post("/session/submit", nil, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer submitResp.Body.Close()
		if submitResp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("expected 422 for incomplete submit, got %d", submitResp.StatusCode)
		}
	})

	// Step 9: Abandon the leftover session
	t.Run("Abandon", func(t *testing.T) {
		resp, err := post("/session/abandon", nil, token)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})
}

// Helpers

func post(path string, body interface{}, tok string) (*http.Response, error) {
	return request("POST", path, body, tok)
}

func put(path string, body interface{}, tok string) (*http.Response, error) {
	return request("PUT", path, body, tok)
}

func get(path string, tok string) (*http.Response, error) {
	return request("GET", path, nil, tok)
}

func request(method, path string, body interface{}, tok string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}

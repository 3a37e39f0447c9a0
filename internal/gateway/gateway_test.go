package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lllllllleong/efilingbridge/internal/models"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func reply(code string) string {
	inner := fmt.Sprintf(`{"eResponse":{"code":%q,"status":"OK","message":{"client":["c"],"server":[]}}}`, code)
	out, _ := json.Marshal(map[string]any{"params": []map[string]string{{"name": "result", "value": inner}}})
	return string(out)
}

func TestEnvelopeShape(t *testing.T) {
	resp := models.NewFilingResponse("400", true)
	resp.CaseTitleText = "State v. <Doe>"

	raw, err := Envelope(*resp)
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	var req ruleRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.RuleCode != RuleCode || len(req.InputParams.Params) != 1 || req.InputParams.Params[0].Name != "rfResponseJson" {
		t.Fatalf("request = %+v", req)
	}
	var wrapped struct {
		RFResponse models.FilingResponse `json:"rfResponse"`
	}
	if err := json.Unmarshal([]byte(req.InputParams.Params[0].Value), &wrapped); err != nil {
		t.Fatalf("decode nested value: %v", err)
	}
	got := wrapped.RFResponse
	if got.Submitter.SubmitDocRefID != "400" || !got.IsSynchronous || got.CaseTitleText != "State v. <Doe>" {
		t.Errorf("nested response = %+v", got)
	}
	if len(got.StatusErrors) != 1 || got.StatusErrors[0].StatusCode != "0" {
		t.Errorf("status list = %+v", got.StatusErrors)
	}
}

func TestSendDecodesReply(t *testing.T) {
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		fmt.Fprint(w, reply("200"))
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, Login: "svc", Password: "pw"}, discard())
	if err != nil {
		t.Fatal(err)
	}
	r, err := c.Send(context.Background(), *models.NewFilingResponse("1", true))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !r.Accepted() || r.Status != "OK" || len(r.ClientMessages) != 1 {
		t.Errorf("reply = %+v", r)
	}
	if user != "svc" || pass != "pw" {
		t.Errorf("basic auth = %q/%q", user, pass)
	}
}

func TestSendBusinessRejectionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, reply("500"))
	}))
	defer srv.Close()

	c, _ := NewClient(Config{URL: srv.URL}, discard())
	r, err := c.Send(context.Background(), *models.NewFilingResponse("1", true))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if r.Accepted() {
		t.Error("reply with code 500 reported as accepted")
	}
}

func TestSendHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := NewClient(Config{URL: srv.URL}, discard())
	_, err := c.Send(context.Background(), *models.NewFilingResponse("1", true))
	if models.KindOf(err) != models.KindTransport {
		t.Errorf("err = %v, want transport error", err)
	}
}

func TestHealthProbeGatesSend(t *testing.T) {
	posts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/rule", func(w http.ResponseWriter, r *http.Request) {
		posts++
		fmt.Fprint(w, reply("200"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL + "/rule", HealthURL: srv.URL + "/status", CheckHealth: true}, discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Send(context.Background(), *models.NewFilingResponse("1", true)); err == nil {
		t.Error("expected error when health probe fails")
	}
	if posts != 0 {
		t.Errorf("posts = %d, want 0", posts)
	}
}

func TestEmptyRuleReply(t *testing.T) {
	r, err := decodeReply([]byte(`{}`))
	if err != nil || r.Code != "" || r.Accepted() {
		t.Errorf("reply = %+v err = %v", r, err)
	}
}

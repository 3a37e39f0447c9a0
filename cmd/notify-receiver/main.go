package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/efilingbridge/internal/httpapi"
	"github.com/Lllllllleong/efilingbridge/internal/services"
)

var (
	handler *httpapi.Handler
	once    sync.Once
	initErr error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleReviewFilingCallback" is the entry point name configured in GCP.
	functions.HTTP("HandleReviewFilingCallback", handleReviewFilingCallback)
}

// main is required by the Go Functions Framework.
func main() {}

// handleReviewFilingCallback receives the backend's review filing callbacks.
func handleReviewFilingCallback(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		var receiver *services.NotificationReceiver
		receiver, initErr = services.NewNotificationFunction(context.Background())
		if initErr == nil {
			handler = httpapi.NewHandler(receiver, nil, slog.Default())
		}
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handler.ServeNotification(w, r)
}

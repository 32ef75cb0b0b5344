// Command scoresim runs a stand-in fraud-scoring oracle for local
// development. It accepts payment-initiation documents and answers in any of
// the response shapes the scoring client normalizes, so the full pipeline can
// be exercised without the real oracle.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	var (
		addr        = flag.String("addr", ":9090", "listen address")
		mode        = flag.String("mode", "bare", "response shape: bare|object|data-object|data-xml|error|status")
		probability = flag.Float64("probability", 0.1, "fraud probability to return")
		status      = flag.Int("status", 500, "HTTP status for -mode status")
		delay       = flag.Duration("delay", 0, "artificial response delay")
	)
	flag.Parse()

	if *probability < 0 || *probability > 1 {
		fmt.Fprintf(os.Stderr, "probability %v outside [0, 1]\n", *probability)
		os.Exit(1)
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		if *delay > 0 {
			time.Sleep(*delay)
		}

		switch *mode {
		case "bare":
			fmt.Fprintf(w, "%g", *probability)
		case "object":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"fraud_probability": %g}`, *probability)
		case "data-object":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"data": {"result": %g}}`, *probability)
		case "data-xml":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"data": "<ScoringResult><fraud_probability>%g</fraud_probability></ScoringResult>"}`, *probability)
		case "error":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"error": "model unavailable"}`)
		case "status":
			http.Error(w, "simulated failure", *status)
		default:
			http.Error(w, "unknown mode", http.StatusInternalServerError)
		}
	}

	fmt.Fprintf(os.Stdout, "scoresim listening on %s (mode=%s probability=%g)\n", *addr, *mode, *probability)
	if err := http.ListenAndServe(*addr, http.HandlerFunc(handler)); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

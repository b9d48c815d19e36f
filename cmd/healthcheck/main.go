// Command healthcheck probes configuration, the database, KuCoin and a
// running API server. It exits 1 when any probe is unhealthy.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"trading-assistant/pkg/config"
	"trading-assistant/pkg/db"
	"trading-assistant/pkg/exchanges/common"
	"trading-assistant/pkg/exchanges/kucoin"
)

type HealthStatus struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthReport struct {
	Overall  string         `json:"overall"`
	Services []HealthStatus `json:"services"`
}

func main() {
	fmt.Println("trading-assistant health check")
	fmt.Println("==============================")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := HealthReport{Overall: "HEALTHY"}

	cfg, err := config.Load()
	if err != nil {
		report.Services = append(report.Services, HealthStatus{
			Service: "Configuration", Status: "UNHEALTHY", Message: err.Error(), Timestamp: time.Now(),
		})
	} else {
		report.Services = append(report.Services,
			checkConfig(cfg),
			checkDatabase(ctx, cfg),
			checkKuCoin(ctx, cfg),
			checkAPIServer(ctx, cfg),
		)
	}

	for _, svc := range report.Services {
		if svc.Status == "UNHEALTHY" {
			report.Overall = "UNHEALTHY"
			break
		} else if svc.Status == "DEGRADED" {
			report.Overall = "DEGRADED"
		}
	}

	fmt.Println()
	for _, svc := range report.Services {
		icon := "✓"
		if svc.Status == "UNHEALTHY" {
			icon = "✗"
		} else if svc.Status == "DEGRADED" {
			icon = "⚠"
		}
		fmt.Printf("%s %-16s %-9s %s\n", icon, svc.Service, svc.Status, svc.Message)
	}
	fmt.Println()
	fmt.Printf("Overall Status: %s\n", report.Overall)

	if len(os.Args) > 1 && os.Args[1] == "--json" {
		jsonData, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(jsonData))
	}

	if report.Overall == "UNHEALTHY" {
		os.Exit(1)
	}
}

func checkConfig(cfg *config.Config) HealthStatus {
	status := HealthStatus{Service: "Configuration", Status: "HEALTHY", Timestamp: time.Now()}
	if !cfg.HasExchangeCredentials() {
		status.Status = "DEGRADED"
		status.Message = "KuCoin credentials not set; signed actions disabled"
		return status
	}
	status.Message = fmt.Sprintf("port=%s sizing=%s", cfg.Port, cfg.SizingMode)
	return status
}

func checkDatabase(ctx context.Context, cfg *config.Config) HealthStatus {
	status := HealthStatus{Service: "Database", Status: "HEALTHY", Timestamp: time.Now()}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("open failed: %v", err)
		return status
	}
	defer database.Close()

	if err := database.Ping(ctx); err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("ping failed: %v", err)
		return status
	}
	status.Message = cfg.DBPath
	return status
}

func checkKuCoin(ctx context.Context, cfg *config.Config) HealthStatus {
	status := HealthStatus{Service: "KuCoin API", Status: "HEALTHY", Timestamp: time.Now()}

	client := kucoin.New(kucoin.Config{
		APIKey:         cfg.KuCoinAPIKey,
		APISecret:      cfg.KuCoinAPISecret,
		APIPassphrase:  cfg.KuCoinAPIPassphrase,
		KeyVersion:     cfg.KuCoinKeyVersion,
		SpotBaseURL:    cfg.KuCoinSpotURL,
		FuturesBaseURL: cfg.KuCoinFuturesURL,
		Timeout:        cfg.ExchangeTimeout,
	}, zerolog.Nop())

	serverTime, err := client.ServerTime(ctx)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("unreachable: %v", err)
		return status
	}
	skew := time.Since(time.UnixMilli(serverTime))
	status.Message = fmt.Sprintf("reachable, clock skew %v", skew.Round(time.Millisecond))

	if !client.HasCredentials() {
		return status
	}
	if _, err := client.Accounts(ctx, common.MarketSpot); err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			status.Status = "UNHEALTHY"
			status.Message = fmt.Sprintf("credentials rejected: %s (%s)", apiErr.Message, apiErr.Code)
			return status
		}
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("signed call failed: %v", err)
		return status
	}
	status.Message += ", credentials accepted"
	return status
}

func checkAPIServer(ctx context.Context, cfg *config.Config) HealthStatus {
	status := HealthStatus{Service: "API Server", Status: "HEALTHY", Timestamp: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://localhost:%s/health", cfg.Port), nil)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("not reachable: %v", err)
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return status
	}
	status.Message = "running"
	return status
}

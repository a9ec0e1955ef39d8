// marketingctl is a command-line interface to the unified marketing client.
// It talks to the vendor APIs directly using the same configuration as the
// server and prints JSON results.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ignite/marketing-hub/internal/config"
	"github.com/ignite/marketing-hub/internal/facebookads"
	"github.com/ignite/marketing-hub/internal/googleads"
	"github.com/ignite/marketing-hub/internal/googleanalytics"
	"github.com/ignite/marketing-hub/internal/platform"
	"github.com/ignite/marketing-hub/internal/unified"
)

const dateLayout = "2006-01-02"

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: marketingctl <command> [flags]

Commands:
  status       show per-platform connection, credential and rate-limit state
  performance  fetch campaign performance across platforms
  pause        pause campaigns
  start        start campaigns
  budget       update a campaign budget on one platform
  audiences    fetch audience insights across platforms`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "status":
		runStatus(os.Args[2:])
	case "performance":
		runPerformance(os.Args[2:])
	case "pause":
		runMutation(os.Args[2:], "pause")
	case "start":
		runMutation(os.Args[2:], "start")
	case "budget":
		runBudget(os.Args[2:])
	case "audiences":
		runAudiences(os.Args[2:])
	default:
		usage()
	}
}

func buildClient(configPath string) *unified.Client {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var clients []platform.Client
	if cfg.GoogleAds.Enabled {
		clients = append(clients, googleads.NewClient(cfg.GoogleAds, nil))
	}
	if cfg.FacebookAds.Enabled {
		clients = append(clients, facebookads.NewClient(cfg.FacebookAds, nil))
	}
	if cfg.GoogleAnalytics.Enabled {
		clients = append(clients, googleanalytics.NewClient(cfg.GoogleAnalytics, nil))
	}
	if len(clients) == 0 {
		log.Fatal("No platforms enabled in config")
	}

	uc := unified.New(clients...)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	for p, err := range uc.ConnectAll(ctx) {
		fmt.Fprintf(os.Stderr, "warning: %s failed to connect: %v\n", p, err)
	}
	return uc
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(data))
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePlatforms(s string) []platform.Platform {
	names := splitCSV(s)
	out := make([]platform.Platform, 0, len(names))
	for _, name := range names {
		p := platform.Platform(name)
		if p != platform.All && !p.Valid() {
			log.Fatalf("Unknown platform %q (known: google_ads, facebook_ads, google_analytics, all)", name)
		}
		out = append(out, p)
	}
	return out
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	fs.Parse(args)

	uc := buildClient(*configPath)
	defer uc.DisconnectAll(context.Background())
	printJSON(uc.GetPlatformStatus(context.Background()))
}

func runPerformance(args []string) {
	fs := flag.NewFlagSet("performance", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	campaigns := fs.String("campaigns", "", "comma-separated campaign IDs")
	startStr := fs.String("start", time.Now().AddDate(0, 0, -7).Format(dateLayout), "start date (YYYY-MM-DD)")
	endStr := fs.String("end", time.Now().Format(dateLayout), "end date (YYYY-MM-DD)")
	metrics := fs.String("metrics", "impressions,clicks,conversions,cost", "comma-separated metrics")
	platforms := fs.String("platforms", "", "comma-separated platforms (default: all connected)")
	fs.Parse(args)

	start, err := time.Parse(dateLayout, *startStr)
	if err != nil {
		log.Fatalf("Invalid -start: %v", err)
	}
	end, err := time.Parse(dateLayout, *endStr)
	if err != nil {
		log.Fatalf("Invalid -end: %v", err)
	}

	uc := buildClient(*configPath)
	defer uc.DisconnectAll(context.Background())

	result, err := uc.FetchCampaignPerformance(context.Background(),
		splitCSV(*campaigns), start, end, splitCSV(*metrics), parsePlatforms(*platforms))
	if err != nil {
		log.Fatalf("Performance query failed: %v", err)
	}
	printJSON(result)
}

func runMutation(args []string, verb string) {
	fs := flag.NewFlagSet(verb, flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	campaigns := fs.String("campaigns", "", "comma-separated campaign IDs (required)")
	platforms := fs.String("platforms", "", "comma-separated platforms (default: all connected)")
	fs.Parse(args)

	ids := splitCSV(*campaigns)
	if len(ids) == 0 {
		log.Fatalf("-campaigns is required")
	}

	uc := buildClient(*configPath)
	defer uc.DisconnectAll(context.Background())

	var batch *unified.MutationBatch
	if verb == "pause" {
		batch = uc.PauseCampaigns(context.Background(), ids, parsePlatforms(*platforms))
	} else {
		batch = uc.StartCampaigns(context.Background(), ids, parsePlatforms(*platforms))
	}
	printJSON(batch)
}

func runBudget(args []string) {
	fs := flag.NewFlagSet("budget", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	platformName := fs.String("platform", "", "target platform (required)")
	campaign := fs.String("campaign", "", "campaign ID (required)")
	amount := fs.Float64("amount", 0, "new budget in currency units (required)")
	budgetType := fs.String("type", "daily", "budget type: daily or lifetime")
	fs.Parse(args)

	p := platform.Platform(*platformName)
	if !p.Valid() {
		log.Fatalf("-platform is required and must name a real platform")
	}
	if *campaign == "" {
		log.Fatalf("-campaign is required")
	}
	if *amount <= 0 {
		log.Fatalf("-amount must be positive")
	}

	uc := buildClient(*configPath)
	defer uc.DisconnectAll(context.Background())

	result, err := uc.UpdateCampaignBudget(context.Background(), p, *campaign, *amount, *budgetType)
	if err != nil {
		log.Fatalf("Budget update failed: %v", err)
	}
	printJSON(result)
}

func runAudiences(args []string) {
	fs := flag.NewFlagSet("audiences", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	audienceID := fs.String("audience", "", "audience ID (optional)")
	platforms := fs.String("platforms", "", "comma-separated platforms (default: all connected)")
	demographics := fs.Bool("demographics", false, "include demographic breakdowns")
	interests := fs.Bool("interests", false, "include interest matches")
	query := fs.String("query", "", "interest search query")
	fs.Parse(args)

	uc := buildClient(*configPath)
	defer uc.DisconnectAll(context.Background())

	filters := &platform.AudienceFilters{
		IncludeDemographics: *demographics,
		IncludeInterests:    *interests,
		InterestQuery:       *query,
	}
	printJSON(uc.GetAudienceInsights(context.Background(), *audienceID, filters, parsePlatforms(*platforms)))
}

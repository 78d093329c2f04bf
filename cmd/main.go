// Package main is the llmwire command line: translate an LLM request body
// between vendor wire formats, or report what a body would translate to.
//
// USAGE:
//
//	llmwire translate -from openai -to anthropic < request.json
//	llmwire detect -url https://api.openai.com/v1/responses < request.json
//	llmwire quality -to gemini < request.json
//	llmwire send -to anthropic -config llmwire.yaml < request.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/term"

	"github.com/llmwire/llmwire/internal/config"
	"github.com/llmwire/llmwire/internal/detect"
	"github.com/llmwire/llmwire/internal/fidelity"
	"github.com/llmwire/llmwire/internal/monitoring"
	"github.com/llmwire/llmwire/internal/pricing"
	"github.com/llmwire/llmwire/internal/translate"
	"github.com/llmwire/llmwire/internal/transport"
	"github.com/llmwire/llmwire/internal/universal"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "translate":
		runTranslate(os.Args[2:])
	case "detect":
		runDetect(os.Args[2:])
	case "quality":
		runQuality(os.Args[2:])
	case "send":
		runSend(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `llmwire - translate LLM request bodies between vendor wire formats

Commands:
  translate -from <provider> -to <provider> [-url <target>]   translate stdin body
  detect    [-url <target>]                                   print detected provider
  quality   -to <provider>                                    print reconstruction quality
  send      -to <provider> [-from <provider>] [-url <target>] translate and call the vendor

Providers: openai, openai-responses, anthropic, gemini
`)
}

// loadConfig reads the config file, or the built-in defaults without one.
func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// setupLogging installs the global logger; console format when stderr is a
// terminal, JSON otherwise.
func setupLogging(cfg *config.Config) {
	if cfg.Logger.Format == "" || cfg.Logger.Format == "json" {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			cfg.Logger.Format = "console"
		}
	}
	cfg.Logger.Output = "stderr"
	monitoring.New(cfg.Logger).Global()
}

func readBody() []byte {
	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatal().Err(err).Msg("read stdin")
	}
	return body
}

func runTranslate(args []string) {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	from := fs.String("from", "", "source provider (empty: detect)")
	to := fs.String("to", "", "target provider (required)")
	url := fs.String("url", "", "target URL used for detection")
	cfgPath := fs.String("config", "", "config file path")
	fs.Parse(args)
	setupLogging(loadConfig(*cfgPath))

	if *to == "" {
		log.Fatal().Msg("-to is required")
	}

	body := readBody()
	tr := translate.New()

	var out []byte
	var err error
	if *from == "" {
		out, err = tr.TranslateRequest(*url, universal.Provider(*to), body)
	} else {
		out, err = tr.Translate(universal.Provider(*from), universal.Provider(*to), body)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("translation failed")
	}

	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
}

func runDetect(args []string) {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	url := fs.String("url", "", "target URL used for detection")
	cfgPath := fs.String("config", "", "config file path")
	fs.Parse(args)
	setupLogging(loadConfig(*cfgPath))

	fmt.Println(detect.Detect(*url, readBody()))
}

func runQuality(args []string) {
	fs := flag.NewFlagSet("quality", flag.ExitOnError)
	from := fs.String("from", "", "source provider (empty: detect)")
	to := fs.String("to", "", "target provider (required)")
	cfgPath := fs.String("config", "", "config file path")
	fs.Parse(args)
	setupLogging(loadConfig(*cfgPath))

	if *to == "" {
		log.Fatal().Msg("-to is required")
	}

	body := readBody()
	src := universal.Provider(*from)
	if src == universal.ProviderUnknown {
		src = detect.Detect("", body)
	}

	tr := translate.New()
	parsed, err := tr.ToUniversal(src, body)
	if err != nil {
		log.Fatal().Err(err).Msg("parse failed")
	}

	report := map[string]any{
		"from":    src,
		"to":      *to,
		"exact":   fidelity.CanReconstructExactly(parsed, universal.Provider(*to)),
		"quality": fidelity.Quality(parsed, universal.Provider(*to)),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("encode report")
	}
}

// runSend translates the stdin body to the target vendor's shape and posts
// it to the configured endpoint, reporting an estimated prompt cost and
// publishing a translation event to the debug feed when one is configured.
func runSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	from := fs.String("from", "", "source provider (empty: detect)")
	to := fs.String("to", "", "target provider (required)")
	url := fs.String("url", "", "endpoint override")
	cfgPath := fs.String("config", "", "config file path")
	fs.Parse(args)
	cfg := loadConfig(*cfgPath)
	setupLogging(cfg)

	if *to == "" {
		log.Fatal().Msg("-to is required")
	}
	target := universal.Provider(*to)

	body := readBody()
	src := universal.Provider(*from)
	if src == universal.ProviderUnknown {
		src = detect.Detect(*url, body)
	}

	start := time.Now()
	tr := translate.New()
	parsed, err := tr.ToUniversal(src, body)
	if err != nil {
		log.Fatal().Err(err).Msg("parse failed")
	}
	parsed.Provider = target
	out, err := tr.FromUniversal(target, parsed)
	if err != nil {
		log.Fatal().Err(err).Msg("translation failed")
	}

	if cost := pricing.EstimateCost(pricing.NewEstimator(), parsed, priceTable(cfg)); cost.Known {
		log.Info().
			Int("prompt_tokens", cost.PromptTokens).
			Float64("usd", cost.USD).
			Msg("estimated prompt cost")
	}

	feed := monitoring.NewFeed()
	if cfg.Feed.Enabled {
		go func() {
			if err := http.ListenAndServe(cfg.Feed.Listen, feed); err != nil {
				log.Warn().Err(err).Msg("feed listener stopped")
			}
		}()
	}

	client, endpoint, err := vendorClient(cfg, target)
	if err != nil {
		log.Fatal().Err(err).Msg("transport setup failed")
	}
	if *url != "" {
		endpoint = *url
	}

	resp, metrics, callErr := client.Call(context.Background(), target, endpoint, out)

	ev := monitoring.TranslationEvent{
		Time:         time.Now(),
		From:         src,
		To:           target,
		Model:        parsed.Model,
		RequestBytes: len(body),
		OutputBytes:  len(out),
		Quality:      fidelity.Quality(parsed, target),
		ExactRebuild: fidelity.CanReconstructExactly(parsed, target),
		Duration:     time.Since(start),
		MessageCount: len(parsed.Messages),
		ToolCount:    len(parsed.Tools),
	}
	if callErr != nil {
		ev.FailureReason = callErr.Error()
	}
	feed.Publish(ev)

	if callErr != nil {
		log.Fatal().Err(callErr).Int("status", metrics.Status).Msg("vendor call failed")
	}
	os.Stdout.Write(resp)
	os.Stdout.Write([]byte("\n"))
}

// providerSection picks the config section for a provider. The Responses
// shape shares the OpenAI credentials and endpoint host.
func providerSection(cfg *config.Config, p universal.Provider) config.ProviderConfig {
	switch p {
	case universal.ProviderAnthropic:
		return cfg.Providers.Anthropic
	case universal.ProviderGemini:
		return cfg.Providers.Gemini
	default:
		return cfg.Providers.OpenAI
	}
}

// vendorClient builds the outbound client for one provider from config,
// wrapping in a SigV4 signer for Bedrock-hosted Anthropic endpoints.
func vendorClient(cfg *config.Config, p universal.Provider) (*transport.Client, string, error) {
	section := providerSection(cfg, p)

	httpClient := &http.Client{Timeout: transport.DefaultTimeout}
	if section.Timeout != 0 {
		httpClient.Timeout = section.Timeout.Std()
	}
	if section.Bedrock {
		signing, err := transport.NewSigV4Transport(section.AWSRegion, nil)
		if err != nil {
			return nil, "", err
		}
		httpClient.Transport = signing
	}

	client := transport.NewClient(
		transport.WithHTTPClient(httpClient),
		transport.WithAPIKey(universal.ProviderOpenAI, cfg.Providers.OpenAI.APIKey),
		transport.WithAPIKey(universal.ProviderAnthropic, cfg.Providers.Anthropic.APIKey),
		transport.WithAPIKey(universal.ProviderGemini, cfg.Providers.Gemini.APIKey),
	)
	return client, section.Endpoint, nil
}

// priceTable builds the configured price table: a sqlite-backed cache of the
// community price feed when a cache path is set, a small static table
// otherwise. A failed refresh degrades to whatever the cache already holds.
func priceTable(cfg *config.Config) pricing.PriceTable {
	if cfg.Pricing.CachePath == "" {
		return pricing.NewStaticTable(defaultPrices)
	}
	table, err := pricing.NewCachedTable(cfg.Pricing.CachePath, cfg.Pricing.TTL.Std(), fetchPrices)
	if err != nil {
		log.Warn().Err(err).Msg("price cache unavailable, using static table")
		return pricing.NewStaticTable(defaultPrices)
	}
	if table.Stale() {
		if err := table.Refresh(context.Background()); err != nil {
			log.Warn().Err(err).Msg("price refresh failed, serving cached prices")
		}
	}
	return table
}

// defaultPrices covers common models when no price cache is configured.
// Values are USD per million tokens.
var defaultPrices = map[string]pricing.Price{
	"gpt-4":            {InputPerMTok: 30, OutputPerMTok: 60},
	"gpt-4o":           {InputPerMTok: 2.5, OutputPerMTok: 10},
	"gpt-4o-mini":      {InputPerMTok: 0.15, OutputPerMTok: 0.6},
	"claude-sonnet-4":  {InputPerMTok: 3, OutputPerMTok: 15},
	"claude-haiku-3.5": {InputPerMTok: 0.8, OutputPerMTok: 4},
	"gemini-2.0-flash": {InputPerMTok: 0.1, OutputPerMTok: 0.4},
}

// priceFeedURL is the community-maintained model price table.
const priceFeedURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// fetchPrices pulls and flattens the remote price feed into per-MTok prices.
func fetchPrices(ctx context.Context) (map[string]pricing.Price, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, priceFeedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch price feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read price feed: %w", err)
	}

	prices := map[string]pricing.Price{}
	gjson.ParseBytes(raw).ForEach(func(model, entry gjson.Result) bool {
		in := entry.Get("input_cost_per_token").Float()
		out := entry.Get("output_cost_per_token").Float()
		if in > 0 || out > 0 {
			prices[model.String()] = pricing.Price{
				InputPerMTok:  in * 1e6,
				OutputPerMTok: out * 1e6,
			}
		}
		return true
	})
	return prices, nil
}

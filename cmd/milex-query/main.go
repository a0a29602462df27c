package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"milex/internal/amqp"
	"milex/internal/cli"
	"milex/internal/core"
	"milex/internal/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the exit code so deferred cleanup runs before the process exits.
func run(args []string) int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentAMQP)
	cfg := cli.LoadAndValidateConfig(logger)

	fs := flag.NewFlagSet("milex-query", flag.ContinueOnError)
	var (
		op        = fs.String("op", log.OpListContinents, "operation name, e.g. rank_by_year or growth_rates")
		year      = fs.Int("year", 0, "year for rank_by_year, expenditure_by_year, continent_summary")
		start     = fs.Int("start", 0, "start year (0 = open)")
		end       = fs.Int("end", 0, "end year (0 = open)")
		country   = fs.String("country", "", "country name")
		countryID = fs.Int64("id", 0, "country id")
		continent = fs.String("continent", "", "continent filter for list_countries")
		limit     = fs.Int("limit", 0, "result limit (0 = all)")
		timeout   = fs.Duration("timeout", 10*time.Second, "reply deadline")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required")
		return 2
	}

	req := amqp.NewQueryRequest(*op)
	req.Year, req.Country, req.CountryID, req.Continent, req.Limit = *year, *country, *countryID, *continent, *limit
	if *start != 0 {
		req.StartYear = start
	}
	if *end != 0 {
		req.EndYear = end
	}

	client, err := amqp.NewClient(amqp.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange, Queue: cfg.AMQPQueue}, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return 1
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Query(ctx, req)
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", core.Kind(err), err)
		return 1
	}

	var pretty any
	if err := json.Unmarshal(resp.Data, &pretty); err != nil {
		os.Stdout.Write(resp.Data)
		return 0
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return 0
}

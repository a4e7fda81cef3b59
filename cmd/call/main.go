// Command call issues a single RPC to the speed worker and prints the reply.
// It is what a chat front end does programmatically, packaged as a CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/speedrpc/internal/client/config"
	"github.com/dmitrijs2005/speedrpc/internal/common"
	"github.com/dmitrijs2005/speedrpc/internal/flagx"
	"github.com/dmitrijs2005/speedrpc/internal/logging"
	"github.com/dmitrijs2005/speedrpc/internal/report"
	rpcclient "github.com/dmitrijs2005/speedrpc/internal/rpc/client"
	"github.com/dmitrijs2005/speedrpc/internal/transport"
)

func main() {
	cfg := config.LoadConfig()

	var reportType, startDate, endDate string
	args := flagx.FilterArgs(os.Args[1:], []string{"-t", "-s", "-e"})
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	fs.StringVar(&reportType, "t", "day", "report type (date_range, day, week, last_week, month, last_month)")
	fs.StringVar(&startDate, "s", "", "start date (YYYY-MM-DD, date_range only)")
	fs.StringVar(&endDate, "e", "", "end date (YYYY-MM-DD, date_range only)")
	_ = fs.Parse(args)

	logger := logging.NewJSON(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	url := transport.URL(cfg.RabbitUser, cfg.RabbitPassword, cfg.RabbitHost, cfg.RabbitPort)
	ch, err := transport.Dial(url, 3, cfg.Timeout/10, logger)
	if err != nil {
		log.Fatalf("broker: %v", err)
	}
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	c, err := rpcclient.New(ctx, ch, cfg.QueueName, logger)
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	payload, err := json.Marshal(report.Request{
		ReportType: reportType,
		StartDate:  startDate,
		EndDate:    endDate,
	})
	if err != nil {
		log.Fatalf("payload: %v", err)
	}

	res, err := c.Call(ctx, payload)
	if err != nil {
		if errors.Is(err, common.ErrTimeout) {
			log.Fatalf("no reply within %s", cfg.Timeout)
		}
		log.Fatalf("call: %v", err)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Println(string(out))
}

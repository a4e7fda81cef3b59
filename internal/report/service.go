// Package report implements the speed-report worker. It resolves the
// requested period, fetches the rendered report from the companion HTTP
// surface, and hands the content back for persistence.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/speedrpc/internal/common"
	"github.com/dmitrijs2005/speedrpc/internal/logging"
	"github.com/dmitrijs2005/speedrpc/internal/rpc"
)

// Request is the call payload understood by this worker.
type Request struct {
	ReportType string `json:"report_type"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
}

// Service fetches speed reports from the companion HTTP surface.
type Service struct {
	baseURL    string
	reportPath string
	client     *http.Client
	logger     logging.Logger
	now        func() time.Time
}

var _ rpc.Worker = (*Service)(nil)

// NewService builds a report worker. baseURL is the companion surface root,
// reportPath the relative path of the report endpoint.
func NewService(baseURL, reportPath string, logger logging.Logger) *Service {
	return &Service{
		baseURL:    baseURL,
		reportPath: reportPath,
		client:     &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// Execute resolves the request period and downloads the report.
func (s *Service) Execute(ctx context.Context, payload []byte) (*rpc.WorkerResult, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedEnvelope, err)
	}

	start, end, err := periodFor(req.ReportType, req.StartDate, req.EndDate, s.now())
	if err != nil {
		return nil, err
	}

	content, err := s.fetch(ctx, start, end)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("report_from_%s_to_%s.xlsx", start, end)
	if start == end {
		name = fmt.Sprintf("report_from_%s.xlsx", start)
	}

	s.logger.Info(ctx, "report fetched", "type", req.ReportType, "start", start, "end", end, "bytes", len(content))

	return &rpc.WorkerResult{FileName: name, Content: content}, nil
}

func (s *Service) requestURL(start, end string) string {
	q := url.Values{}
	q.Set("start_date", start)
	q.Set("end_date", end)
	return s.baseURL + s.reportPath + "?" + q.Encode()
}

func (s *Service) fetch(ctx context.Context, start, end string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.requestURL(start, end), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: report endpoint: %v", common.ErrWorker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: report endpoint returned %d", common.ErrWorker, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

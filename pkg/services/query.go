package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/apperrors"
	"github.com/13102180531/ExcelQuery/pkg/config"
	"github.com/13102180531/ExcelQuery/pkg/dataset"
	"github.com/13102180531/ExcelQuery/pkg/filter"
	"github.com/13102180531/ExcelQuery/pkg/llm"
	"github.com/13102180531/ExcelQuery/pkg/logging"
	"github.com/13102180531/ExcelQuery/pkg/models"
)

// QueryRequest is one natural language query against the latest upload.
type QueryRequest struct {
	// Query is the natural language question.
	Query string `json:"query"`

	// APIType optionally selects the provider backend; empty means the
	// server default.
	APIType string `json:"api_type,omitempty"`

	// APIConfig optionally overrides provider settings for this call.
	APIConfig llm.ProviderConfig `json:"api_config,omitempty"`

	// Filters, when set, bypasses translation and applies this expression
	// directly.
	Filters *filter.Expression `json:"filters,omitempty"`
}

// QueryResult is the outcome of one executed query.
type QueryResult struct {
	Query            string             `json:"query"`
	ParsedConditions *filter.Expression `json:"parsed_conditions"`
	Results          []map[string]any   `json:"results"`
	RowCount         int                `json:"row_count"`
	SourceFiles      []string           `json:"source_files"`
	ResultID         string             `json:"result_id,omitempty"`
}

// Download is a materialized workbook ready to send to the client.
type Download struct {
	Filename    string
	ContentType string
	Content     []byte
}

// QueryService runs the query pipeline: load the latest upload, profile
// it, obtain a filter expression, evaluate it and serialize the subset.
// Use this interface for dependency injection and testing.
type QueryService interface {
	// Execute runs the pipeline and caches the subset for later download.
	Execute(ctx context.Context, req QueryRequest) (*QueryResult, error)

	// Download runs the pipeline and materializes the subset as a workbook.
	Download(ctx context.Context, req QueryRequest) (*Download, error)

	// DownloadCached materializes a previously cached result.
	DownloadCached(ctx context.Context, resultID string) (*Download, error)
}

type queryService struct {
	storage   config.StorageConfig
	files     FileService
	factory   llm.TranslatorFactory
	evaluator *filter.Evaluator
	cache     ResultCache
	logger    *zap.Logger
}

var _ QueryService = (*queryService)(nil)

// NewQueryService creates the query service.
func NewQueryService(
	storage config.StorageConfig,
	files FileService,
	factory llm.TranslatorFactory,
	evaluator *filter.Evaluator,
	cache ResultCache,
	logger *zap.Logger,
) QueryService {
	return &queryService{
		storage:   storage,
		files:     files,
		factory:   factory,
		evaluator: evaluator,
		cache:     cache,
		logger:    logger.Named("query"),
	}
}

// Execute runs the pipeline and returns row maps plus the resolved
// expression and a download id for the cached subset.
func (s *queryService) Execute(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	subset, expr, source, err := s.run(ctx, req)
	if err != nil {
		return nil, err
	}

	resultID := s.cache.Put(CachedResult{
		Dataset:    subset,
		FileStem:   fileStem(source.OriginalName),
		Unfiltered: len(expr.Filters) == 0,
	})

	return &QueryResult{
		Query:            req.Query,
		ParsedConditions: expr,
		Results:          subset.Records(),
		RowCount:         subset.NumRows(),
		SourceFiles:      []string{source.OriginalName},
		ResultID:         resultID,
	}, nil
}

// Download runs the pipeline and renders the subset as a workbook.
func (s *queryService) Download(ctx context.Context, req QueryRequest) (*Download, error) {
	subset, expr, source, err := s.run(ctx, req)
	if err != nil {
		return nil, err
	}
	return buildDownload(subset, fileStem(source.OriginalName), len(expr.Filters) == 0, time.Now())
}

// DownloadCached renders a cached subset as a workbook.
func (s *queryService) DownloadCached(ctx context.Context, resultID string) (*Download, error) {
	entry, err := s.cache.Get(resultID)
	if err != nil {
		return nil, err
	}
	return buildDownload(entry.Dataset, entry.FileStem, entry.Unfiltered, time.Now())
}

// run is the shared pipeline behind Execute and Download.
func (s *queryService) run(ctx context.Context, req QueryRequest) (*dataset.Dataset, *filter.Expression, *models.UploadedFile, error) {
	source, ok := s.files.Latest(ctx)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: no uploaded files", apperrors.ErrDataFileMissing)
	}

	ds, err := dataset.Load(s.storage.UploadPath(source.StoredName), source.OriginalName)
	if err != nil {
		return nil, nil, nil, err
	}

	// An empty table cannot match anything; skip translation entirely.
	if ds.Empty() {
		return ds.Select(nil), filter.Empty(), source, nil
	}

	expr, err := s.resolveExpression(ctx, req, ds)
	if err != nil {
		return nil, nil, nil, err
	}

	subset := s.evaluator.Apply(ds, expr)

	s.logger.Info("Executed query",
		zap.String("query", logging.SanitizeQuery(req.Query)),
		zap.String("source_file", source.OriginalName),
		zap.Int("total_rows", ds.NumRows()),
		zap.Int("matched_rows", subset.NumRows()))
	return subset, expr, source, nil
}

// resolveExpression returns the caller-supplied expression, or translates
// the query via the selected provider.
func (s *queryService) resolveExpression(ctx context.Context, req QueryRequest, ds *dataset.Dataset) (*filter.Expression, error) {
	if req.Filters != nil {
		expr := &filter.Expression{
			Filters:         req.Filters.Filters,
			LogicalOperator: filter.NormalizeLogicalOperator(req.Filters.LogicalOperator, s.logger),
		}
		return expr, nil
	}

	translator, defaults, err := s.factory.ForProvider(req.APIType)
	if err != nil {
		return nil, err
	}
	cfg := req.APIConfig.MergedOver(defaults)
	return translator.Translate(ctx, req.Query, ds.Profile(), cfg)
}

// buildDownload renders the dataset and names the workbook after its
// source: <stem>_query_results_<ts>.xlsx, or _full_data when the
// expression matched everything.
func buildDownload(ds *dataset.Dataset, stem string, unfiltered bool, now time.Time) (*Download, error) {
	content, err := dataset.WriteXLSX(ds)
	if err != nil {
		return nil, err
	}

	suffix := "query_results"
	if unfiltered {
		suffix = "full_data"
	}
	name := fmt.Sprintf("%s_%s_%s.xlsx", stem, suffix, now.Format("20060102150405"))

	return &Download{
		Filename:    name,
		ContentType: dataset.XLSXContentType,
		Content:     content,
	}, nil
}

func fileStem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/stockroom/pkg/db/models"
	"github.com/angelmondragon/stockroom/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
	"github.com/angelmondragon/stockroom/pkg/jobservice"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

// DefaultRestockBaseline is the minimum collection target.
const DefaultRestockBaseline = 100

// JobLauncher is the slice of the job service client used to launch jobs.
type JobLauncher interface {
	CreateJob(ctx context.Context, req jobservice.CreateJobRequest) (*jobservice.Job, error)
	StartJob(ctx context.Context, jobID string) (*jobservice.Job, error)
}

// StatsReader reads ledger counters.
type StatsReader interface {
	GetStats(ctx context.Context, productID string) (models.InventoryStats, error)
}

// JobLaunch describes the outcome of a launch request.
type JobLaunch struct {
	ProductID   string        `json:"productId"`
	Kind        enums.JobKind `json:"kind"`
	JobID       string        `json:"jobId,omitempty"`
	JobName     string        `json:"jobName,omitempty"`
	TargetCount int           `json:"targetCount,omitempty"`
	Launched    bool          `json:"launched"`
	Message     string        `json:"message,omitempty"`
}

// Service launches collection and validation jobs on the job service.
type Service interface {
	RequestInventory(ctx context.Context, input CollectionInput) (JobLaunch, error)
	ValidateItems(ctx context.Context, input ValidationInput) (JobLaunch, error)
}

// CollectionInput asks for targetCount fresh items for a product.
type CollectionInput struct {
	ProductID   string
	ConfigID    string
	SourcePath  string
	TargetCount int
	Category    string
	Tags        []string
}

// ValidationInput asks for the unchecked items of a product to be validated.
type ValidationInput struct {
	ProductID  string
	ConfigID   string
	SourcePath string
}

type service struct {
	jobs              JobLauncher
	stats             StatsReader
	logg              *logger.Logger
	defaultSourcePath string
	now               func() time.Time
}

// ServiceParams groups the automation dependencies.
type ServiceParams struct {
	Jobs              JobLauncher
	Stats             StatsReader
	Logger            *logger.Logger
	DefaultSourcePath string
	Clock             func() time.Time
}

// NewService builds the job launching service.
func NewService(params ServiceParams) (Service, error) {
	if params.Jobs == nil {
		return nil, fmt.Errorf("job launcher required")
	}
	if params.Stats == nil {
		return nil, fmt.Errorf("stats reader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		jobs:              params.Jobs,
		stats:             params.Stats,
		logg:              params.Logger,
		defaultSourcePath: params.DefaultSourcePath,
		now:               clock,
	}, nil
}

func (s *service) RequestInventory(ctx context.Context, input CollectionInput) (JobLaunch, error) {
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return JobLaunch{}, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if strings.TrimSpace(input.ConfigID) == "" {
		return JobLaunch{}, pkgerrors.New(pkgerrors.CodeValidation, "config id required")
	}
	target := input.TargetCount
	if target <= 0 {
		target = DefaultRestockBaseline
	}

	ts := s.now().UnixMilli()
	return s.launch(ctx, launchSpec{
		kind:       enums.JobKindCollection,
		name:       fmt.Sprintf("collect_%s_%d", productID, ts),
		configID:   input.ConfigID,
		sourcePath: s.sourcePath(input.SourcePath),
		metadata: jobservice.JobMetadata{
			Type:        enums.JobKindCollection.String(),
			ProductID:   productID,
			Category:    input.Category,
			Tags:        input.Tags,
			TargetCount: target,
			Timestamp:   ts,
		},
	})
}

func (s *service) ValidateItems(ctx context.Context, input ValidationInput) (JobLaunch, error) {
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return JobLaunch{}, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if strings.TrimSpace(input.ConfigID) == "" {
		return JobLaunch{}, pkgerrors.New(pkgerrors.CodeValidation, "config id required")
	}

	stats, err := s.stats.GetStats(ctx, productID)
	if err != nil {
		return JobLaunch{}, err
	}
	if stats.UncheckedItems == 0 {
		return JobLaunch{
			ProductID: productID,
			Kind:      enums.JobKindValidation,
			Message:   "no unchecked items",
		}, nil
	}

	ts := s.now().UnixMilli()
	return s.launch(ctx, launchSpec{
		kind:       enums.JobKindValidation,
		name:       fmt.Sprintf("validate_%s_%d", productID, ts),
		configID:   input.ConfigID,
		sourcePath: s.sourcePath(input.SourcePath),
		metadata: jobservice.JobMetadata{
			Type:        enums.JobKindValidation.String(),
			ProductID:   productID,
			TargetCount: int(stats.UncheckedItems),
			Timestamp:   ts,
		},
	})
}

type launchSpec struct {
	kind       enums.JobKind
	name       string
	configID   string
	sourcePath string
	metadata   jobservice.JobMetadata
}

func (s *service) launch(ctx context.Context, spec launchSpec) (JobLaunch, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"product_id": spec.metadata.ProductID,
		"job_kind":   spec.kind,
		"job_name":   spec.name,
	})

	job, err := s.jobs.CreateJob(ctx, jobservice.CreateJobRequest{
		Name:       spec.name,
		ConfigID:   spec.configID,
		SourcePath: spec.sourcePath,
		Metadata:   spec.metadata,
	})
	if err != nil {
		s.logg.Error(ctx, "create job failed", err)
		return JobLaunch{}, err
	}

	ctx = s.logg.WithJobID(ctx, job.ID)
	if _, err := s.jobs.StartJob(ctx, job.ID); err != nil {
		s.logg.Error(ctx, "start job failed", err)
		return JobLaunch{}, err
	}

	s.logg.Info(ctx, "job launched")
	return JobLaunch{
		ProductID:   spec.metadata.ProductID,
		Kind:        spec.kind,
		JobID:       job.ID,
		JobName:     spec.name,
		TargetCount: spec.metadata.TargetCount,
		Launched:    true,
	}, nil
}

func (s *service) sourcePath(override string) string {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return trimmed
	}
	return s.defaultSourcePath
}

// RestockTarget sizes a collection job for a product that fell under
// threshold: enough to reach twice the threshold, never below baseline.
func RestockTarget(threshold int, current int64, baseline int) int {
	if baseline <= 0 {
		baseline = DefaultRestockBaseline
	}
	target := 2*int64(threshold) - current
	if target < int64(baseline) {
		return baseline
	}
	return int(target)
}

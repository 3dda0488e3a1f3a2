package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hatlonely/dbo/log"
	"github.com/hatlonely/dbo/rdb/query"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ObservableOptions struct {
	// EnableMetrics 是否启用指标收集
	EnableMetrics bool `cfg:"enableMetrics" def:"true"`

	// EnableLogging 是否记录每条语句
	EnableLogging bool `cfg:"enableLogging" def:"true"`

	// EnableTracing 是否启用分布式追踪
	EnableTracing bool `cfg:"enableTracing"`

	// SlowThreshold 超过该耗时的语句以 warn 级别记录，0 表示不区分
	SlowThreshold time.Duration `cfg:"slowThreshold" def:"200ms"`

	// Name 组件名称标识，用于所有观测维度
	// - Metrics: 作为指标名前缀
	// - Logging: 作为 component 字段值
	// - Tracing: 作为 span 的 component 属性
	Name string `cfg:"name" def:"dbo"`
}

// ObservableMetrics 封装 prometheus 指标
type ObservableMetrics struct {
	statementCounter  *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
	activeStatements  prometheus.Gauge
	rowsReturned      prometheus.Histogram
}

// NewObservableMetrics 创建并注册指标，同名指标已注册时复用已有的收集器
func NewObservableMetrics(name string, registerer prometheus.Registerer) (*ObservableMetrics, error) {
	metrics := &ObservableMetrics{
		statementCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_statements_total",
				Help: "Total number of executed statements",
			},
			[]string{"operation", "status"},
		),
		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_statement_duration_seconds",
				Help:    "Duration of statements in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),
		activeStatements: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: name + "_active_statements",
				Help: "Number of statements in flight",
			},
		),
		rowsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    name + "_rows_returned",
				Help:    "Rows returned by queries",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
		),
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	var err error
	if metrics.statementCounter, err = register(registerer, metrics.statementCounter); err != nil {
		return nil, err
	}
	if metrics.statementDuration, err = register(registerer, metrics.statementDuration); err != nil {
		return nil, err
	}
	if metrics.activeStatements, err = register(registerer, metrics.activeStatements); err != nil {
		return nil, err
	}
	if metrics.rowsReturned, err = register(registerer, metrics.rowsReturned); err != nil {
		return nil, err
	}
	return metrics, nil
}

func register[T prometheus.Collector](registerer prometheus.Registerer, c T) (T, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "prometheus register failed")
	}
	return c, nil
}

// ObservableExecutor 装饰器，为任何 Executor 添加指标、日志和追踪
type ObservableExecutor struct {
	executor Executor

	logger        log.Logger
	metrics       *ObservableMetrics
	tracer        trace.Tracer
	name          string
	slowThreshold time.Duration
}

func NewObservableExecutorWithOptions(executor Executor, options *ObservableOptions, logger log.Logger, registerer prometheus.Registerer) (*ObservableExecutor, error) {
	if executor == nil {
		return nil, errors.New("executor is nil")
	}
	if options == nil {
		options = &ObservableOptions{Name: "dbo", EnableMetrics: true, EnableLogging: true}
	}

	obs := &ObservableExecutor{
		executor:      executor,
		name:          options.Name,
		slowThreshold: options.SlowThreshold,
	}

	if options.EnableLogging {
		if logger == nil {
			logger = log.Default()
		}
		obs.logger = logger.With("component", options.Name)
	}

	if options.EnableMetrics {
		metrics, err := NewObservableMetrics(options.Name, registerer)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create metrics")
		}
		obs.metrics = metrics
	}

	if options.EnableTracing {
		obs.tracer = otel.Tracer(fmt.Sprintf("dbo.%s", options.Name))
	}

	return obs, nil
}

// operationOf 取语句的首个关键字作为操作名
func operationOf(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

func (obs *ObservableExecutor) observe(ctx context.Context, sql string, args []any, fn func(context.Context) (int64, error)) error {
	operation := operationOf(sql)
	start := time.Now()

	var span trace.Span
	if obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, "dbo."+operation,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("component", obs.name),
				attribute.String("db.system", string(obs.executor.Dialect())),
				attribute.String("db.statement", sql),
			),
		)
		defer span.End()
	}

	if obs.metrics != nil {
		obs.metrics.activeStatements.Inc()
		defer obs.metrics.activeStatements.Dec()
	}

	n, err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int64("db.rows", n))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		obs.metrics.statementCounter.WithLabelValues(operation, status).Inc()
		obs.metrics.statementDuration.WithLabelValues(operation).Observe(duration.Seconds())
		if operation == "select" && err == nil {
			obs.metrics.rowsReturned.Observe(float64(n))
		}
	}

	if obs.logger != nil {
		attrs := []any{"sql", sql, "args", args, "rows", n, "duration", duration}
		switch {
		case err != nil:
			obs.logger.ErrorContext(ctx, "statement failed", append(attrs, "error", err.Error())...)
		case obs.slowThreshold > 0 && duration > obs.slowThreshold:
			obs.logger.WarnContext(ctx, "slow statement", attrs...)
		case obs.logger.Enabled(ctx, slog.LevelDebug):
			obs.logger.DebugContext(ctx, "statement", attrs...)
		}
	}

	return err
}

func (obs *ObservableExecutor) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	var rows []Row
	err := obs.observe(ctx, sql, args, func(ctx context.Context) (int64, error) {
		var err error
		rows, err = obs.executor.Query(ctx, sql, args...)
		return int64(len(rows)), err
	})
	return rows, err
}

func (obs *ObservableExecutor) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	var result Result
	err := obs.observe(ctx, sql, args, func(ctx context.Context) (int64, error) {
		var err error
		result, err = obs.executor.Exec(ctx, sql, args...)
		return result.RowsAffected, err
	})
	return result, err
}

func (obs *ObservableExecutor) Dialect() query.Dialect {
	return obs.executor.Dialect()
}

func (obs *ObservableExecutor) Close() error {
	return obs.executor.Close()
}

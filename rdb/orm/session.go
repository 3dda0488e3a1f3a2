package orm

import (
	"context"
	"time"

	"github.com/hatlonely/dbo/log"
	"github.com/hatlonely/dbo/rdb/database"
	"github.com/hatlonely/dbo/rdb/filter"
	"github.com/hatlonely/dbo/rdb/query"
	"github.com/hatlonely/dbo/rdb/schema"
	"github.com/pkg/errors"
)

type SessionOptions struct {
	Metadata MetadataColumns `cfg:"metadata"`
	// 构造实体时为所有属性设置的内容类型，infer 表示按列类型推断，raw 表示不过滤
	DefaultContentType string `cfg:"defaultContentType" def:"name"`
	// Inserter/Updater 关联的用户表
	UserTable string `cfg:"userTable" def:"users"`
	// 元数据时间列的格式
	TimeFormat  string             `cfg:"timeFormat" def:"2006-01-02 15:04:05"`
	EntityCache EntityCacheOptions `cfg:"entityCache"`
}

type sessionOptions struct {
	logger   log.Logger
	registry *Registry
	filters  *filter.Registry
	actor    ActorProvider
	request  RequestProvider
	audit    AuditHook
	now      func() time.Time
}

type SessionOption func(*sessionOptions)

func WithLogger(logger log.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

func WithRegistry(registry *Registry) SessionOption {
	return func(o *sessionOptions) {
		o.registry = registry
	}
}

func WithFilters(filters *filter.Registry) SessionOption {
	return func(o *sessionOptions) {
		o.filters = filters
	}
}

func WithActorProvider(p ActorProvider) SessionOption {
	return func(o *sessionOptions) {
		o.actor = p
	}
}

func WithRequestProvider(p RequestProvider) SessionOption {
	return func(o *sessionOptions) {
		o.request = p
	}
}

func WithAuditHook(h AuditHook) SessionOption {
	return func(o *sessionOptions) {
		o.audit = h
	}
}

// WithClock 替换元数据时间的来源
func WithClock(now func() time.Time) SessionOption {
	return func(o *sessionOptions) {
		o.now = now
	}
}

// Session 一组实体和集合共享的上下文：执行器、表结构缓存、实体缓存和类型注册表
// 实体缓存属于会话，通常每个请求一个会话，表结构缓存可以在会话之间共享
type Session struct {
	executor database.Executor
	schemas  *schema.Cache
	cache    *EntityCache
	registry *Registry
	filters  *filter.Registry
	actor    ActorProvider
	request  RequestProvider
	audit    AuditHook
	logger   log.Logger
	now      func() time.Time

	metadata           MetadataColumns
	defaultContentType string
	userTable          string
	timeFormat         string
}

func NewSessionWithOptions(executor database.Executor, schemas *schema.Cache, options *SessionOptions, opts ...SessionOption) (*Session, error) {
	if executor == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "executor is required")
	}
	if options == nil {
		options = &SessionOptions{}
	}

	o := &sessionOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.filters == nil {
		o.filters = filter.NewRegistry()
	}
	if o.actor == nil {
		o.actor = ContextActorProvider{}
	}
	if o.request == nil {
		o.request = ContextRequestProvider{}
	}
	if o.now == nil {
		o.now = time.Now
	}

	if schemas == nil {
		describer, err := schema.NewDescriber(executor)
		if err != nil {
			return nil, errors.WithMessage(err, "create schema describer failed")
		}
		schemas, err = schema.NewCacheWithOptions(describer, nil, o.logger)
		if err != nil {
			return nil, err
		}
	}

	defaultContentType := options.DefaultContentType
	if defaultContentType == "" {
		defaultContentType = filter.Name
	}
	if defaultContentType != "infer" && !o.filters.Valid(defaultContentType) {
		return nil, errors.Wrapf(filter.ErrUnknownContentType, "default content type [%s]", defaultContentType)
	}
	timeFormat := options.TimeFormat
	if timeFormat == "" {
		timeFormat = time.DateTime
	}
	userTable := options.UserTable
	if userTable == "" {
		userTable = "users"
	}

	return &Session{
		executor:           executor,
		schemas:            schemas,
		cache:              NewEntityCacheWithOptions(&options.EntityCache),
		registry:           o.registry,
		filters:            o.filters,
		actor:              o.actor,
		request:            o.request,
		audit:              o.audit,
		logger:             o.logger,
		now:                o.now,
		metadata:           options.Metadata.withDefaults(),
		defaultContentType: defaultContentType,
		userTable:          userTable,
		timeFormat:         timeFormat,
	}, nil
}

func (s *Session) Registry() *Registry {
	return s.registry
}

func (s *Session) Schemas() *schema.Cache {
	return s.schemas
}

func (s *Session) Cache() *EntityCache {
	return s.cache
}

func (s *Session) Executor() database.Executor {
	return s.executor
}

func (s *Session) Close() error {
	s.cache.Clear()
	return s.executor.Close()
}

// New 构造一个未持久化的实体，属性为列的默认值
func (s *Session) New(ctx context.Context, table string) (Model, error) {
	e, err := s.newEntity(ctx, table)
	if err != nil {
		return nil, err
	}
	e.initDefaults()
	return s.wrap(e)
}

// Load 按主键加载实体，没有匹配的行时返回 ErrNotFound
func (s *Session) Load(ctx context.Context, table string, id any) (Model, error) {
	e, err := s.load(ctx, table, id)
	if err != nil {
		return nil, err
	}
	return s.wrap(e)
}

// FromRow 使用调用方提供的行构造已持久化的实体，不查询数据库
func (s *Session) FromRow(ctx context.Context, table string, row map[string]any) (Model, error) {
	e, err := s.newEntity(ctx, table)
	if err != nil {
		return nil, err
	}
	e.initRow(row)
	return s.wrap(e)
}

func (s *Session) newEntity(ctx context.Context, table string) (*Entity, error) {
	if table == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "table is required")
	}
	sc, err := s.schemas.Get(ctx, table)
	if err != nil {
		return nil, err
	}
	return newEntity(s, sc), nil
}

func (s *Session) load(ctx context.Context, table string, id any) (*Entity, error) {
	e, err := s.newEntity(ctx, table)
	if err != nil {
		return nil, err
	}
	if err := e.fetch(ctx, id); err != nil {
		return nil, err
	}
	return e, nil
}

// wrap 使用注册的工厂包装实体，没有注册时返回通用实体
func (s *Session) wrap(e *Entity) (Model, error) {
	factory, ok := s.registry.Factory(e.table)
	if !ok {
		return e, nil
	}
	m, err := factory(e)
	if err != nil {
		return nil, errors.WithMessagef(err, "factory for table [%s] failed", e.table)
	}
	if m == nil || m.Base() != e {
		return nil, errors.Wrapf(ErrInvalidArgument, "factory for table [%s] must wrap the given entity", e.table)
	}
	e.model = m
	return m, nil
}

// cached 通过实体缓存获取实体，未命中时加载并写入缓存
func (s *Session) cached(ctx context.Context, table string, id any) (Model, error) {
	if m, ok := s.cache.Get(ctx, table, id); ok {
		return m, nil
	}
	m, err := s.Load(ctx, table, id)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, table, id, m)
	return m, nil
}

// AllIDs 表中所有行的主键，包括软删除的行
func (s *Session) AllIDs(ctx context.Context, table string) ([]any, error) {
	sc, err := s.schemas.Get(ctx, table)
	if err != nil {
		return nil, err
	}
	pk, err := sc.PrimaryKey()
	if err != nil {
		return nil, err
	}
	rows, err := database.QueryStatement(ctx, s.executor, &query.Select{Table: table, Fields: []string{pk}})
	if err != nil {
		return nil, errors.WithMessagef(err, "select ids of [%s] failed", table)
	}
	ids := make([]any, len(rows))
	for i, row := range rows {
		ids[i] = row[pk]
	}
	return ids, nil
}

// SingleFieldValue 第一条满足约束的行（包括软删除的行）的 field 值，没有匹配时第二个返回值为 false
func (s *Session) SingleFieldValue(ctx context.Context, table string, field string, constraints any) (any, bool, error) {
	c, err := s.Collection(ctx, table, constraints, IncludeDeleted())
	if err != nil {
		return nil, false, err
	}
	m, ok, err := c.First(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	v, err := m.Base().GetAttribute(field)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// New 构造类型为 T 的新实体
func New[T Model](ctx context.Context, s *Session, table string) (T, error) {
	m, err := s.New(ctx, table)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](m)
}

// Load 按主键加载类型为 T 的实体
func Load[T Model](ctx context.Context, s *Session, table string, id any) (T, error) {
	m, err := s.Load(ctx, table, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](m)
}

func as[T Model](m Model) (T, error) {
	t, ok := m.(T)
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrInvalidArgument, "table [%s] resolves to %T, not %T", m.Base().table, m, zero)
	}
	return t, nil
}

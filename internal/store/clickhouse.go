package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"github.com/google/uuid"

	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmetric"
)

const (
	SeriesTable = "series"
	ScoreTable  = "scores"
)

const seriesDDL = `CREATE TABLE IF NOT EXISTS %s (
    run_id    UUID,
    run_time  DateTime,
    reference Date32,
    body      String,
    kind      String,
    time      DateTime,
    value     Float64
) ENGINE = MergeTree ORDER BY (body, kind, reference, time)`

const scoreDDL = `CREATE TABLE IF NOT EXISTS %s (
    run_id    UUID,
    run_time  DateTime,
    reference Date32,
    body      String,
    start     DateTime,
    end       DateTime,
    score     Float64,
    compared  UInt32,
    agreed    UInt32
) ENGINE = ReplacingMergeTree(run_time) ORDER BY (body, reference)`

// SeriesBatch holds column data for native insert
type SeriesBatch struct {
	RunID     *proto.ColUUID
	RunTime   *proto.ColDateTime
	Reference *proto.ColDate32
	Body      *proto.ColStr
	Kind      *proto.ColStr
	Time      *proto.ColDateTime
	Value     *proto.ColFloat64
}

func NewSeriesBatch() *SeriesBatch {
	return &SeriesBatch{
		RunID:     new(proto.ColUUID),
		RunTime:   new(proto.ColDateTime),
		Reference: new(proto.ColDate32),
		Body:      new(proto.ColStr),
		Kind:      new(proto.ColStr),
		Time:      new(proto.ColDateTime),
		Value:     new(proto.ColFloat64),
	}
}

func (b *SeriesBatch) Reset() {
	b.RunID.Reset()
	b.RunTime.Reset()
	b.Reference.Reset()
	b.Body.Reset()
	b.Kind.Reset()
	b.Time.Reset()
	b.Value.Reset()
}

func (b *SeriesBatch) Len() int {
	return b.Time.Rows()
}

func (b *SeriesBatch) Input() proto.Input {
	return proto.Input{
		{Name: "run_id", Data: b.RunID},
		{Name: "run_time", Data: b.RunTime},
		{Name: "reference", Data: b.Reference},
		{Name: "body", Data: b.Body},
		{Name: "kind", Data: b.Kind},
		{Name: "time", Data: b.Time},
		{Name: "value", Data: b.Value},
	}
}

// AddRecord appends every point of rec.
func (b *SeriesBatch) AddRecord(runID uuid.UUID, runTime time.Time, rec nlmetric.SeriesRecord) {
	for i, t := range rec.Series.Times {
		b.RunID.Append(runID)
		b.RunTime.Append(runTime)
		b.Reference.Append(rec.Reference)
		b.Body.Append(string(rec.Body))
		b.Kind.Append(string(rec.Kind))
		b.Time.Append(t)
		b.Value.Append(rec.Series.Values[i])
	}
}

// ScoreBatch holds column data for native insert
type ScoreBatch struct {
	RunID     *proto.ColUUID
	RunTime   *proto.ColDateTime
	Reference *proto.ColDate32
	Body      *proto.ColStr
	Start     *proto.ColDateTime
	End       *proto.ColDateTime
	Score     *proto.ColFloat64
	Compared  *proto.ColUInt32
	Agreed    *proto.ColUInt32
}

func NewScoreBatch() *ScoreBatch {
	return &ScoreBatch{
		RunID:     new(proto.ColUUID),
		RunTime:   new(proto.ColDateTime),
		Reference: new(proto.ColDate32),
		Body:      new(proto.ColStr),
		Start:     new(proto.ColDateTime),
		End:       new(proto.ColDateTime),
		Score:     new(proto.ColFloat64),
		Compared:  new(proto.ColUInt32),
		Agreed:    new(proto.ColUInt32),
	}
}

func (b *ScoreBatch) Reset() {
	b.RunID.Reset()
	b.RunTime.Reset()
	b.Reference.Reset()
	b.Body.Reset()
	b.Start.Reset()
	b.End.Reset()
	b.Score.Reset()
	b.Compared.Reset()
	b.Agreed.Reset()
}

func (b *ScoreBatch) Len() int {
	return b.Score.Rows()
}

func (b *ScoreBatch) Input() proto.Input {
	return proto.Input{
		{Name: "run_id", Data: b.RunID},
		{Name: "run_time", Data: b.RunTime},
		{Name: "reference", Data: b.Reference},
		{Name: "body", Data: b.Body},
		{Name: "start", Data: b.Start},
		{Name: "end", Data: b.End},
		{Name: "score", Data: b.Score},
		{Name: "compared", Data: b.Compared},
		{Name: "agreed", Data: b.Agreed},
	}
}

func (b *ScoreBatch) AddResult(runID uuid.UUID, runTime time.Time, r nlmetric.Result) {
	b.RunID.Append(runID)
	b.RunTime.Append(runTime)
	b.Reference.Append(r.Reference)
	b.Body.Append(string(r.Body))
	b.Start.Append(r.Interval.Start)
	b.End.Append(r.Interval.End)
	b.Score.Append(r.Score)
	b.Compared.Append(uint32(r.Compared))
	b.Agreed.Append(uint32(r.Agreed))
}

// doer is the part of *ch.Client the sink needs.
type doer interface {
	Do(ctx context.Context, q ch.Query) error
}

// ClickHouseSink inserts series and scores over the native protocol.
// A ch.Client is not safe for concurrent use, so queries are serialized.
// The column batches are reused across inserts and guarded by the same
// mutex. Every row carries RunID, fixed for the sink's lifetime.
type ClickHouseSink struct {
	RunID uuid.UUID

	mu        sync.Mutex
	conn      doer
	series    *SeriesBatch
	scores    *ScoreBatch
	seriesFQN string
	scoreFQN  string
	now       func() time.Time
}

// NewClickHouseSink wraps an open client writing to database.
func NewClickHouseSink(conn *ch.Client, database string) *ClickHouseSink {
	return newClickHouseSink(conn, database)
}

func newClickHouseSink(conn doer, database string) *ClickHouseSink {
	return &ClickHouseSink{
		RunID:     uuid.New(),
		conn:      conn,
		series:    NewSeriesBatch(),
		scores:    NewScoreBatch(),
		seriesFQN: fmt.Sprintf("%s.%s", database, SeriesTable),
		scoreFQN:  fmt.Sprintf("%s.%s", database, ScoreTable),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DialClickHouse opens a native ch-go client.
func DialClickHouse(ctx context.Context, addr, database, user, password string) (*ch.Client, error) {
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     addr,
		Database:    database,
		User:        user,
		Password:    password,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse dial %s: %w", addr, err)
	}
	return conn, nil
}

// EnsureTables creates the series and score tables if missing.
func (s *ClickHouseSink) EnsureTables(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range []string{
		fmt.Sprintf(seriesDDL, s.seriesFQN),
		fmt.Sprintf(scoreDDL, s.scoreFQN),
	} {
		if err := s.conn.Do(ctx, ch.Query{Body: q}); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Save implements nlmetric.Sink.
func (s *ClickHouseSink) Save(ctx context.Context, rec nlmetric.SeriesRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.series.Reset()

	s.series.AddRecord(s.RunID, s.now(), rec)
	return s.flush(ctx, s.seriesFQN, "run_id, run_time, reference, body, kind, time, value", s.series.Len(), s.series.Input())
}

// InsertScore records one scored rotation.
func (s *ClickHouseSink) InsertScore(ctx context.Context, r nlmetric.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.scores.Reset()

	s.scores.AddResult(s.RunID, s.now(), r)
	return s.flush(ctx, s.scoreFQN, "run_id, run_time, reference, body, start, end, score, compared, agreed", s.scores.Len(), s.scores.Input())
}

// flush sends input as one insert. Callers hold mu and reset the batch
// behind input only after flush returns.
func (s *ClickHouseSink) flush(ctx context.Context, tableFQN, columns string, rows int, input proto.Input) error {
	if rows == 0 {
		return nil
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES", tableFQN, columns)
	if err := s.conn.Do(ctx, ch.Query{Body: query, Input: input}); err != nil {
		return fmt.Errorf("insert %s: %w", tableFQN, err)
	}
	return nil
}

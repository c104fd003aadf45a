package cwlog

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/advdv/reqlog"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PutLogEvents limits, see the CloudWatch Logs API reference.
const (
	maxEventsPerCall = 10000
	maxBytesPerCall  = 1048576
	maxEventBytes    = 262144
	maxMessageBytes  = maxEventBytes - eventOverhead
	eventOverhead    = 26
	maxSpanPerCall   = 24 * time.Hour
)

// truncatedMarker ends the message of an event that was cut to fit [maxMessageBytes].
const truncatedMarker = " [truncated]"

// PutLogEventsAPI is the part of the CloudWatch Logs client used by [Sink].
type PutLogEventsAPI interface {
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// Sink delivers record batches to CloudWatch Logs. It never creates log groups or streams, and never sets a
// retention policy: both must exist, a missing one fails the delivery.
type Sink struct {
	client PutLogEventsAPI
	enc    zapcore.Encoder
	now    func() time.Time
}

// NewSink inits a sink on top of a CloudWatch Logs client.
func NewSink(client PutLogEventsAPI) *Sink {
	return &Sink{
		client: client,
		enc: zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			NameKey:        "channel",
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeName:     zapcore.FullNameEncoder,
		}),
		now: time.Now,
	}
}

// PutLogEvents implements [reqlog.Sink]. Batches exceeding the request limits of CloudWatch are sent as several
// consecutive requests; the first failing request aborts the rest.
func (s *Sink) PutLogEvents(ctx context.Context, logGroup, logStream string, records []reqlog.Record) error {
	events := make([]types.InputLogEvent, 0, len(records))
	for _, rec := range records {
		ev, err := s.event(rec)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}

	// CloudWatch rejects batches that are not in chronological order. The sort is stable so records with equal
	// timestamps keep the order they were handed in.
	slices.SortStableFunc(events, func(a, b types.InputLogEvent) int {
		return cmp.Compare(aws.ToInt64(a.Timestamp), aws.ToInt64(b.Timestamp))
	})

	for _, chunk := range chunkEvents(events) {
		out, err := s.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(logGroup),
			LogStreamName: aws.String(logStream),
			LogEvents:     chunk,
		})
		if err != nil {
			return errors.Wrapf(err, "failed to put %d log event(s)", len(chunk))
		}
		if err := rejected(out); err != nil {
			return err
		}
	}

	return nil
}

func (s *Sink) event(rec reqlog.Record) (types.InputLogEvent, error) {
	ts := rec.Time
	if ts.IsZero() {
		ts = s.now()
	}

	msg := rec.Format()
	line, err := s.encode(rec, msg)
	if err != nil {
		return types.InputLogEvent{}, err
	}

	// CloudWatch rejects oversized events. The message is cut first so the line stays valid JSON; the line itself
	// is only cut when the context alone is too large.
	if over := len(line) - maxMessageBytes; over > 0 {
		msg = truncateUTF8(msg, len(msg)-over-len(truncatedMarker)) + truncatedMarker
		if line, err = s.encode(rec, msg); err != nil {
			return types.InputLogEvent{}, err
		}
		line = truncateUTF8(line, maxMessageBytes)
	}

	return types.InputLogEvent{
		Message:   aws.String(line),
		Timestamp: aws.Int64(ts.UnixMilli()),
	}, nil
}

func (s *Sink) encode(rec reqlog.Record, msg string) (string, error) {
	fields := make([]zapcore.Field, 0, 2)
	if len(rec.Context) > 0 {
		fields = append(fields, zap.Any("context", rec.Context))
	}
	if len(rec.Extra) > 0 {
		fields = append(fields, zap.Any("extra", rec.Extra))
	}

	buf, err := s.enc.EncodeEntry(zapcore.Entry{
		Level:      rec.Level,
		LoggerName: rec.Channel,
		Message:    msg,
	}, fields)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode log event")
	}
	defer buf.Free()

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// chunkEvents splits chronologically sorted events into requests that stay within the PutLogEvents limits.
func chunkEvents(events []types.InputLogEvent) (chunks [][]types.InputLogEvent) {
	maxSpan := maxSpanPerCall.Milliseconds()

	start, size := 0, 0
	for i, ev := range events {
		evSize := len(aws.ToString(ev.Message)) + eventOverhead
		span := aws.ToInt64(ev.Timestamp) - aws.ToInt64(events[start].Timestamp)
		if i > start && (i-start >= maxEventsPerCall || size+evSize > maxBytesPerCall || span > maxSpan) {
			chunks = append(chunks, events[start:i])
			start, size = i, 0
		}
		size += evSize
	}
	if start < len(events) {
		chunks = append(chunks, events[start:])
	}

	return chunks
}

func rejected(out *cloudwatchlogs.PutLogEventsOutput) error {
	if out == nil || out.RejectedLogEventsInfo == nil {
		return nil
	}

	info := out.RejectedLogEventsInfo
	return errors.Errorf("log events rejected (too new from index %d, too old until index %d, expired until index %d)",
		aws.ToInt32(info.TooNewLogEventStartIndex),
		aws.ToInt32(info.TooOldLogEventEndIndex),
		aws.ToInt32(info.ExpiredLogEventEndIndex))
}

var _ reqlog.Sink = &Sink{}

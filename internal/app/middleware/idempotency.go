package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"getmyguide/internal/app/commands"
	"getmyguide/internal/domain/shared/errs"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Error      string
	ErrorKind  string
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the stored outcome of a command key. Successes and
// business rejections are stored; gateway, consistency and internal
// failures are not, so the caller may retry them with the same key.
// Keys are scoped to the principal, so two users never share an outcome.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := scopedKey(idCmd)
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				return replay(rec, idCmd, codec)
			}
			result, err := next.Dispatch(ctx, cmd)
			return result, remember(ctx, store, codec, key, result, err)
		})
	}
}

func scopedKey(cmd IdempotentCommand) string {
	key := cmd.Key() + ":" + cmd.IdempotencyKey()
	if r, ok := cmd.(RoleRestricted); ok {
		key = cmd.Key() + ":" + string(r.Principal().ID) + ":" + cmd.IdempotencyKey()
	}
	return key
}

// remember stores the outcome of a first execution and returns the error
// the caller should see.
func remember(ctx context.Context, store IdempotencyStore, codec ResultCodec, key string, result any, err error) error {
	record := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
	if err != nil {
		if !storable(err) {
			return err
		}
		record.Error = err.Error()
		record.ErrorKind = string(errs.KindOf(err))
		if saveErr := store.Save(ctx, record); saveErr != nil {
			return errors.Join(err, saveErr)
		}
		return err
	}
	if result != nil {
		payload, encErr := codec.Encode(result)
		if encErr != nil {
			return encErr
		}
		record.Payload = payload
	}
	return store.Save(ctx, record)
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.Error != "" {
		return nil, errs.E(errs.Kind(rec.ErrorKind), "", errors.New(rec.Error))
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func storable(err error) bool {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindNotFound, errs.KindAuthorization, errs.KindConflict, errs.KindPaymentVerification:
		return true
	default:
		return false
	}
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}

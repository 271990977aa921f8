package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stayhub/internal/app/commands"
)

// IdempotentCommand is implemented by commands that may be replayed by clients.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	// ResultPrototype returns a pointer of the handler result type to decode into.
	ResultPrototype() any
}

type IdempotencyRecord struct {
	Key     string
	Command string
	// Fingerprint is a digest of the command that produced Payload.
	Fingerprint string
	Payload     []byte
	OccurredAt  time.Time
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

var (
	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
	ErrIdempotencyReuse = errors.New("middleware: idempotency key reused for a different request")
)

// Idempotency replays the stored result of a successful command with the same key.
// Keys are scoped to the acting user; a key replayed with a different command or
// body fails with ErrIdempotencyReuse. Failures are not stored so the client can
// retry them.
func Idempotency(store IdempotencyStore, codec ResultCodec, logger *slog.Logger) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := scopedKey(idCmd)
			sum, err := fingerprint(cmd)
			if err != nil {
				return nil, fmt.Errorf("middleware: idempotency fingerprint: %w", err)
			}
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("middleware: idempotency lookup: %w", err)
			}
			if found {
				if rec.Command != cmd.Key() || rec.Fingerprint != sum {
					return nil, ErrIdempotencyReuse
				}
				proto := idCmd.ResultPrototype()
				if proto == nil {
					return nil, errMissingPrototype
				}
				if err := codec.Decode(rec.Payload, proto); err != nil {
					return nil, err
				}
				return proto, nil
			}
			result, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			record := IdempotencyRecord{Key: key, Command: cmd.Key(), Fingerprint: sum, OccurredAt: time.Now().UTC()}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					logger.WarnContext(ctx, "idempotency result not encodable", "key", key, "error", encErr)
					return result, nil
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				logger.WarnContext(ctx, "idempotency record not stored", "key", key, "command", cmd.Key(), "error", saveErr)
			}
			return result, nil
		})
	}
}

// scopedKey binds the client key to the acting user so one caller can never read
// another's stored result.
func scopedKey(cmd IdempotentCommand) string {
	var actor string
	if scoped, ok := cmd.(ActorScoped); ok {
		actor = string(scoped.ActorID())
	}
	return fmt.Sprintf("%d:%s/%s", len(actor), actor, cmd.IdempotencyKey())
}

func fingerprint(cmd commands.Command) (string, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(cmd.Key()))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

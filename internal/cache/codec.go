package cache

import (
	"context"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding so equal values produce equal bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v as deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// GetValue reads key from p and decodes it into v.
func GetValue(ctx context.Context, p Provider, key string, v any) (bool, error) {
	data, ok, err := p.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// SetValue encodes v and stores it under key.
func SetValue(ctx context.Context, p Provider, key string, v any, ttl time.Duration) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	return p.Set(ctx, key, data, ttl)
}

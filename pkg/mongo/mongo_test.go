package mongo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/qrmenu/pkg/mongo"
)

func TestConfigGuards(t *testing.T) {
	t.Parallel()

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()
		_, err := mongo.New(context.Background(), mongo.Config{})
		assert.ErrorIs(t, err, mongo.ErrNoURL)
	})

	t.Run("empty database", func(t *testing.T) {
		t.Parallel()
		_, err := mongo.Open(context.Background(), mongo.Config{ConnectionURL: "mongodb://127.0.0.1:1"})
		assert.ErrorIs(t, err, mongo.ErrNoDatabase)
	})
}

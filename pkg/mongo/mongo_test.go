package mongo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/mongo"
)

func TestNewWithDatabase_RequiresName(t *testing.T) {
	t.Parallel()

	_, err := mongo.NewWithDatabase(context.Background(), mongo.Config{ConnectionURL: "mongodb://localhost:27017"})
	assert.ErrorIs(t, err, mongo.ErrDatabaseRequired)
}

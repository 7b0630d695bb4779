package mongo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/mailqueue/pkg/mongo"
)

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	client, err := mongo.New(context.Background(), mongo.Config{})
	assert.ErrorIs(t, err, mongo.ErrEmptyConnectionURL)
	assert.Nil(t, client)

	db, err := mongo.NewWithDatabase(context.Background(), mongo.Config{ConnectionURL: "mongodb://localhost:27017"}, "")
	assert.ErrorIs(t, err, mongo.ErrEmptyDatabase)
	assert.Nil(t, db)
}

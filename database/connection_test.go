package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "safety", DatabaseName("mongodb://localhost:27017/safety"))
	assert.Equal(t, "safety", DatabaseName("mongodb://user:pw@db:27017/safety?authSource=admin"))
	assert.Equal(t, defaultDatabaseName, DatabaseName("mongodb://localhost:27017"))
	assert.Equal(t, defaultDatabaseName, DatabaseName("mongodb://localhost:27017/admin"))
	assert.Equal(t, defaultDatabaseName, DatabaseName("::not a uri::"))
}

func TestMigrationsAreOrdered(t *testing.T) {
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotNil(t, m.Up)
	}
}

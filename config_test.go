package gorkflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDuration_NilPolicyUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultBackoffSeconds*time.Second, BackoffDuration(nil))
}

func TestBackoffDuration_ExplicitZeroIsHonored(t *testing.T) {
	assert.Equal(t, time.Duration(0), BackoffDuration(&RetryPolicy{MaxRetries: 3, BackoffSeconds: 0}))
}

func TestBackoffDuration_UsesConfiguredSeconds(t *testing.T) {
	assert.Equal(t, 7*time.Second, BackoffDuration(&RetryPolicy{MaxRetries: 3, BackoffSeconds: 7}))
}

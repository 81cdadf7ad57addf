package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-address"))
	assert.Equal(t, "***@***", RedactEmail(""))
}

func TestRedactName(t *testing.T) {
	assert.Equal(t, "M***", RedactName("Minji"))
	assert.Equal(t, "김***", RedactName("김지민"))
	assert.Equal(t, "***", RedactName(""))
	assert.Equal(t, "***", RedactName("   "))
}

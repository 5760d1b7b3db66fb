package pii

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"supplier-engine-service/internal/models"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "c***@example.fr", MaskEmail("camille@example.fr"))
	assert.Equal(t, "***", MaskEmail("a@b"))
	assert.Equal(t, "***", MaskEmail("no-at-sign"))
	assert.Equal(t, "***", MaskEmail("@example.fr"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "***4567", MaskPhone("+33 6 12 34 4567"))
	assert.Equal(t, "***", MaskPhone("12"))
}

func TestMaskName(t *testing.T) {
	assert.Equal(t, "É***", MaskName("Élodie Durand"))
	assert.Equal(t, "*", MaskName("A"))
}

func TestCustomerFields(t *testing.T) {
	fields := CustomerFields(models.Customer{
		Name:    "Camille Martin",
		Address: "12 rue des Lilas",
		City:    "Lyon",
		Phone:   "+33600001234",
	})
	assert.Equal(t, "C***", fields["customer"])
	assert.Equal(t, "Lyon", fields["city"])
	assert.Equal(t, "***1234", fields["phone"])
	assert.NotContains(t, fields, "email")
	for _, v := range fields {
		assert.NotContains(t, v, "rue des Lilas")
	}
}

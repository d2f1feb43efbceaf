package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashWithDomainDeterminism(t *testing.T) {
	h1 := HashWithDomain(DomainDataset, []byte("payload"))
	h2 := HashWithDomain(DomainDataset, []byte("payload"))
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte("payload")
	assert.NotEqual(t, HashWithDomain(DomainDataset, data), HashWithDomain(DomainGraph, data),
		"Different domains must produce different hashes")

	// The separator keeps domain/data boundaries unambiguous.
	assert.NotEqual(t, HashWithDomain("ab", []byte("c")), HashWithDomain("a", []byte("bc")))
}

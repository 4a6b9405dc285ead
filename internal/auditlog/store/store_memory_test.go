package store

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() Backend { return NewInMemory() }})
}

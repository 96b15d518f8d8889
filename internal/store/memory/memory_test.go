package memory

import (
	"testing"

	"github.com/dvloznov/spendbook/internal/store"
	"github.com/dvloznov/spendbook/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

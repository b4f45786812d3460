// Package storagesvc holds the object stores behind attachment.Store.
package storagesvc

import (
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

// New returns the store selected by conf.Storage.Driver.
func New(conf *core.Config) (attachment.Store, error) {
	switch conf.Storage.Driver {
	case core.StorageLocal, "":
		return NewLocalStore(conf.Storage.LocalRoot, conf.Storage.PublicBaseURL)
	case core.StorageOSS:
		return NewOSSStore(conf.Storage)
	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}

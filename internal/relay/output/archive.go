package output

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
	"github.com/autopeer-io/fleetrelay/internal/relay/storage"
)

// Archive writes CSV files and then uploads every file that changed.
type Archive struct {
	csv      *CSV
	provider storage.Provider
	prefix   string
}

var _ Writer = (*Archive)(nil)

// NewArchive uploads the files of csv under prefix.
func NewArchive(csv *CSV, provider storage.Provider, prefix string) *Archive {
	return &Archive{csv: csv, provider: provider, prefix: prefix}
}

// ObjectKey returns the key a category is uploaded to.
func (a *Archive) ObjectKey(cat model.Category) string {
	return path.Join(a.prefix, string(cat)+".csv")
}

func (a *Archive) Write(ctx context.Context, res *model.Result) error {
	touched, err := a.csv.write(res)
	errs := []error{err}

	for _, cat := range touched {
		if err := a.provider.PutFile(ctx, a.ObjectKey(cat), a.csv.Path(cat)); err != nil {
			errs = append(errs, fmt.Errorf("archive %s: %w", cat, err))
		}
	}
	return errors.Join(errs...)
}

package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/typelib"
	"github.com/wippyai/typelib/errors"
)

// Driver is the contract a format driver satisfies. An importer parses
// serialized bytes into a fresh registry of type definitions; an exporter
// serializes an existing registry. The core never needs a driver's
// concrete type: it dispatches on the string tag the driver registered
// under.
type Driver interface {
	Import(data []byte, cfg *typelib.Config) (*Registry, error)
	Export(reg *Registry, cfg *typelib.Config) ([]byte, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver makes a format driver available under the given tag.
// Drivers register at process startup, typically from an init function.
// RegisterDriver panics when the driver is nil or the tag is taken.
func RegisterDriver(tag string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("registry: RegisterDriver driver is nil")
	}
	if _, dup := drivers[tag]; dup {
		panic("registry: RegisterDriver called twice for driver " + tag)
	}
	drivers[tag] = driver
}

// Drivers returns the tags of the registered format drivers, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	tags := make([]string, 0, len(drivers))
	for tag := range drivers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func lookupDriver(tag string) Driver {
	driversMu.RLock()
	defer driversMu.RUnlock()
	return drivers[tag]
}

// Import parses data with the driver registered under tag and commits the
// result through Merge: either every imported type installs or the
// registry is left untouched. The config key "allow_override", when set to
// "true", lets imported definitions replace conflicting existing ones.
func (r *Registry) Import(tag string, data []byte, cfg *typelib.Config) error {
	d := lookupDriver(tag)
	if d == nil {
		return errors.UnknownDriver(errors.OpImport, tag)
	}

	imported, err := d.Import(data, cfg)
	if err != nil {
		return errors.ImportFailed(tag, err)
	}

	override := cfg.Get("allow_override") == "true"
	if err := r.Merge(imported, override); err != nil {
		return err
	}

	Logger().Debug("imported",
		zap.String("driver", tag),
		zap.Int("types", imported.NumTypes()))
	return nil
}

// Export serializes the registry with the driver registered under tag.
func (r *Registry) Export(tag string, cfg *typelib.Config) ([]byte, error) {
	d := lookupDriver(tag)
	if d == nil {
		return nil, errors.UnknownDriver(errors.OpExport, tag)
	}

	data, err := d.Export(r, cfg)
	if err != nil {
		return nil, errors.ExportFailed(tag, err)
	}
	return data, nil
}

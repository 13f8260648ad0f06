// Package instance manages named research instances.
//
// An instance is an isolated workspace (a research topic, a course, a
// reading group) with its own vector collection. Isolation is enforced
// two ways: each instance gets a dedicated collection, and every chunk
// written through the store carries an instance_name metadata stamp that
// ValidateSeparation can audit after the fact.
package instance

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MinNameLength and MaxNameLength bound instance names.
	MinNameLength = 2
	MaxNameLength = 48

	// collectionPrefix and collectionSuffix frame the per-instance
	// collection name: scholar_instance_<name>_papers.
	collectionPrefix = "scholar_instance_"
	collectionSuffix = "_papers"
)

var (
	// ErrInvalidName is returned for names that fail validation.
	ErrInvalidName = errors.New("invalid instance name")

	// ErrReservedName is returned for names on the reserved list.
	ErrReservedName = errors.New("reserved instance name")

	// ErrInstanceExists is returned when creating an instance whose name is taken.
	ErrInstanceExists = errors.New("instance already exists")

	// ErrInstanceNotFound is returned when an instance does not exist.
	ErrInstanceNotFound = errors.New("instance not found")
)

// reservedNames cannot be used as instance names. They collide with
// system collections, SQL keywords used in generated names, or routes.
var reservedNames = map[string]bool{
	"default":  true,
	"system":   true,
	"admin":    true,
	"all":      true,
	"none":     true,
	"test":     true,
	"internal": true,
	"backup":   true,
	"scholar":  true,
	"instance": true,
}

// ValidateName checks an instance name against the naming rules:
// lowercase letters, digits and underscores only, must start with a
// letter, no consecutive underscores, length within bounds, and not
// on the reserved list.
func ValidateName(name string) error {
	if len(name) < MinNameLength {
		return fmt.Errorf("%w: %q is shorter than %d characters", ErrInvalidName, name, MinNameLength)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, MaxNameLength)
	}
	if name[0] < 'a' || name[0] > 'z' {
		return fmt.Errorf("%w: %q must start with a lowercase letter", ErrInvalidName, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_':
			if i+1 < len(name) && name[i+1] == '_' {
				return fmt.Errorf("%w: %q contains consecutive underscores", ErrInvalidName, name)
			}
		default:
			return fmt.Errorf("%w: %q contains invalid character %q", ErrInvalidName, name, string(c))
		}
	}
	if strings.HasSuffix(name, "_") {
		return fmt.Errorf("%w: %q must not end with an underscore", ErrInvalidName, name)
	}
	if reservedNames[name] {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}

// CollectionName derives the vector collection name for an instance.
// The mapping is deterministic so the collection can always be found
// from the instance name alone.
func CollectionName(instanceName string) string {
	return collectionPrefix + instanceName + collectionSuffix
}

// InstanceNameFromCollection reverses CollectionName. The second return
// value is false for collection names outside the instance namespace.
func InstanceNameFromCollection(collection string) (string, bool) {
	if !strings.HasPrefix(collection, collectionPrefix) || !strings.HasSuffix(collection, collectionSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(collection, collectionPrefix), collectionSuffix)
	if name == "" {
		return "", false
	}
	return name, true
}

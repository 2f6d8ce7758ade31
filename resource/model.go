package resource

import (
	"regexp"

	"github.com/pkg/errors"
)

// Model is the name of one implementation of an API, e.g. "fake" or "ultrasonic".
type Model string

var modelRegexValidator = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Validate ensures the model name is well formed.
func (m Model) Validate() error {
	if m == "" {
		return errors.New("model name missing")
	}
	if !modelRegexValidator.MatchString(string(m)) {
		return errors.Errorf("model name %q must be lowercase letters, digits, '-' or '_'", m)
	}
	return nil
}

// APIModel is the tuple that identifies a model implementing an API.
type APIModel struct {
	API   API
	Model Model
}

func (am APIModel) String() string {
	return string(am.API) + "/" + string(am.Model)
}

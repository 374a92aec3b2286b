package orbit

import (
	"errors"

	"github.com/signalsfoundry/scenario-editor/model"
)

func asValidation(err error, target **model.ValidationError) bool {
	return errors.As(err, target)
}

package contracts

import "github.com/go-playground/validator/v10"

// validate is shared by every contract type; validator caches struct metadata
var validate *validator.Validate

func init() {
	validate = validator.New()
}

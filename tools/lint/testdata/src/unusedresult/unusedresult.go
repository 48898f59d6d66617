package unusedresult

import (
	"errors"
	"fmt"
)

func validate(store string) error {
	if store == "" {
		errors.New("empty store") // want "result of errors.New call not used"
		fmt.Errorf("unknown store %q", store) // want "result of fmt.Errorf call not used"
	}
	if store != "json" {
		return fmt.Errorf("unknown store %q", store)
	}
	return nil
}

package executor

import "fmt"

func errNoData(command string) error {
	return fmt.Errorf("No data available: %s", command)
}

func errAdditionalData(command string, rows int) error {
	return fmt.Errorf("Additional data available, %d rows: %s", rows, command)
}

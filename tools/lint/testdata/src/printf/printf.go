package printf

import "fmt"

func report(targets int, took string) string {
	return fmt.Sprintf("Synced %d targets in %d", targets, took) // want "fmt.Sprintf format %d has arg took of wrong type string"
}

func reportOwner(path string) string {
	return fmt.Sprintf("%s is owned by %s", path) // want "fmt.Sprintf format %s reads arg #2, but call has 1 arg"
}

func reportOK(targets int, took string) string {
	return fmt.Sprintf("Synced %d targets in %s", targets, took)
}

// Package all links every storage backend into the binary.
package all

import (
	_ "kiesraad/internal/storage/mssql"
	_ "kiesraad/internal/storage/postgres"
	_ "kiesraad/internal/storage/sqlite"
)

// Package all registers every storage backend with the factory. The binary
// blank-imports this package; config decides which backend actually runs.
package all

import (
	_ "github.com/MIS-WV-DA-VI/risk-analysis/internal/storage/postgres"
	_ "github.com/MIS-WV-DA-VI/risk-analysis/internal/storage/sqlite"
)

package configuration

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/zvonler/groupmig/database"
	"github.com/zvonler/groupmig/graph"
	"github.com/zvonler/groupmig/utils"
)

// OpenExistingStore opens the sync store configured through viper, erroring
// when the database file has never been created.
func OpenExistingStore() (ss *database.SyncStore, err error) {
	dbPath := viper.GetString("database")

	var exists bool
	if exists, err = utils.PathExists(dbPath); err == nil {
		if exists {
			ss, err = database.OpenSyncStore(dbPath, viper.GetString("resources"))
		} else {
			err = fmt.Errorf("Database %q does not exist", dbPath)
		}
	}
	return
}

// OpenStore opens the configured sync store, creating it when absent.
func OpenStore() (*database.SyncStore, error) {
	return database.OpenSyncStore(viper.GetString("database"), viper.GetString("resources"))
}

// NewGraphClient builds a source API client from the configured token.
func NewGraphClient() (*graph.Client, error) {
	token := viper.GetString("access-token")
	if token == "" {
		return nil, fmt.Errorf("no access token configured (set GRAPH_ACCESS_TOKEN)")
	}
	return graph.NewClient(token), nil
}

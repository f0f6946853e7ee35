package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

var (
	entityName string
	entityType string
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Manage monitored entities",
}

var entitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(GetConfig())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.state.LoadEntities(cmd.Context()); err != nil {
			return fmt.Errorf("failed to list entities: %w", err)
		}
		entities := a.state.Entities()
		if len(entities) == 0 {
			fmt.Println("No entities found.")
			return nil
		}
		fmt.Printf("Found %d entities:\n\n", len(entities))
		for i, e := range entities {
			fmt.Printf("%d. %s (%s)\n", i+1, e.Name, e.EntityType)
			fmt.Printf("   ID: %d\n", e.Key())
			if e.CreatedAt != nil {
				fmt.Printf("   Created: %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

var entitiesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an entity to monitor",
	Long: `Add an entity to monitor.

Examples:
  dossier entities add --name "ACME S.A." --type empresa
  dossier entities add --name "Fulano de Tal" --type pessoa`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := model.ParseEntityType(entityType)
		if err != nil {
			return err
		}
		a, err := newApp(GetConfig())
		if err != nil {
			return err
		}
		defer a.close()

		created, err := a.state.AddEntity(cmd.Context(), model.MonitoredEntity{Name: entityName, EntityType: t})
		if err != nil {
			return fmt.Errorf("failed to add entity: %w", err)
		}
		fmt.Printf("✓ Entity %q added (ID %d)\n", created.Name, created.Key())
		return nil
	},
}

var entitiesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Stop monitoring an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entity id %q: %w", args[0], err)
		}
		a, err := newApp(GetConfig())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.state.DeleteEntity(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete entity: %w", err)
		}
		fmt.Printf("✓ Entity %d deleted\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(entitiesCmd)
	entitiesCmd.AddCommand(entitiesListCmd, entitiesAddCmd, entitiesDeleteCmd)

	entitiesAddCmd.Flags().StringVar(&entityName, "name", "", "Entity name (required)")
	entitiesAddCmd.Flags().StringVar(&entityType, "type", string(model.EntityCompany), "Entity type: empresa, pessoa, fund")
	entitiesAddCmd.MarkFlagRequired("name")
}

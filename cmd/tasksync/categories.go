// Categories command shows both sides' categories and how they pair up.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories on both sides and their pairings",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

func runCategories(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	snCats, err := rt.supernote.ListCategories()
	if err != nil {
		return fmt.Errorf("list supernote categories: %w", err)
	}
	apCats, err := rt.reminders.ListCategories()
	if err != nil {
		return fmt.Errorf("list apple categories: %w", err)
	}
	links, err := rt.store.AllCategoryLinks()
	if err != nil {
		return fmt.Errorf("read category links: %w", err)
	}

	if flagJSON {
		return printJSON(map[string]any{
			"supernote": snCats,
			"apple":     apCats,
			"links":     links,
		})
	}

	linkedSn := make(map[string]string)
	linkedAp := make(map[string]string)
	for _, l := range links {
		if l.Tombstoned {
			continue
		}
		linkedSn[l.SupernoteID] = l.AppleID
		linkedAp[l.AppleID] = l.SupernoteID
	}
	titleOf := func(cats []types.Category, id string) string {
		for _, c := range cats {
			if c.NativeID == id {
				return c.Title
			}
		}
		return "(missing)"
	}

	fmt.Println("Supernote:")
	for _, c := range snCats {
		if apID, ok := linkedSn[c.NativeID]; ok {
			fmt.Printf("  %-30s ↔ %s\n", c.Title, titleOf(apCats, apID))
			continue
		}
		fmt.Printf("  %-30s (unpaired)\n", c.Title)
	}
	fmt.Println("Apple Reminders:")
	for _, c := range apCats {
		if _, ok := linkedAp[c.NativeID]; ok {
			continue
		}
		fmt.Printf("  %-30s (unpaired)\n", c.Title)
	}
	return nil
}

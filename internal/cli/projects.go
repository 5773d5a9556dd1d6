package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"qlscan/internal/models"
)

var (
	projectsLimit int

	addURL         string
	addStars       int
	addLanguage    string
	addDescription string
	addTopics      []string
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage the project store",
	Long: `Projects lists and registers the codebases a batch run iterates
over. Projects are processed in descending star order.

Subcommands:
  list   List stored projects (default)
  add    Register or update a project

Examples:
  qlscan projects
  qlscan projects list --limit 10
  qlscan projects add facebook/react --stars 230000 --language javascript`,
	RunE: runProjectsList,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects",
	RunE:  runProjectsList,
}

var projectsAddCmd = &cobra.Command{
	Use:   "add <owner/repo>",
	Short: "Register or update a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsAdd,
}

func init() {
	projectsCmd.Flags().IntVarP(&projectsLimit, "limit", "n", 0, "max results (0 = all)")
	projectsListCmd.Flags().IntVarP(&projectsLimit, "limit", "n", 0, "max results (0 = all)")

	projectsAddCmd.Flags().StringVar(&addURL, "url", "", "clone URL (default: https://github.com/<owner/repo>)")
	projectsAddCmd.Flags().IntVar(&addStars, "stars", 0, "star count, used for batch ordering")
	projectsAddCmd.Flags().StringVarP(&addLanguage, "language", "l", "", "primary language")
	projectsAddCmd.Flags().StringVarP(&addDescription, "description", "d", "", "short description")
	projectsAddCmd.Flags().StringSliceVar(&addTopics, "topics", nil, "topic tags")

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsAddCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	projects, err := dbClient.ListProjects(ctx, projectsLimit)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Println("No projects stored. Add one with 'qlscan projects add'.")
		return nil
	}

	fmt.Printf("Projects (%d):\n\n", len(projects))
	for _, p := range projects {
		lang := p.Language
		if lang == "" {
			lang = "-"
		}
		fmt.Printf("- %-40s %8d ★  %s\n", p.FullName, p.Stars, lang)
		if verbose {
			if p.Description != "" {
				fmt.Printf("  %s\n", p.Description)
			}
			if len(p.Topics) > 0 {
				fmt.Printf("  Topics: %v\n", p.Topics)
			}
		}
	}

	return nil
}

func runProjectsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fullName := args[0]
	if !strings.Contains(fullName, "/") {
		exitWithError("project name must be qualified as owner/repo, got %q", fullName)
	}

	url := addURL
	if url == "" {
		url = "https://github.com/" + fullName
	}

	project := models.ProjectDescriptor{
		FullName:    fullName,
		URL:         url,
		Stars:       addStars,
		Language:    addLanguage,
		Description: addDescription,
		Topics:      addTopics,
	}

	if err := dbClient.UpsertProject(ctx, project); err != nil {
		return fmt.Errorf("add project: %w", err)
	}

	total, err := dbClient.CountProjects(ctx)
	if err != nil {
		return fmt.Errorf("count projects: %w", err)
	}
	fmt.Printf("Registered %s (%d projects stored)\n", fullName, total)
	return nil
}

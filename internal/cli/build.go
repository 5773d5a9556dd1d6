package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"qlscan/internal/codeql"
	"qlscan/internal/db"
	"qlscan/internal/models"
)

var (
	buildLanguage     string
	buildURL          string
	buildForce        bool
	buildSkipExisting bool
)

var buildCmd = &cobra.Command{
	Use:   "build <owner/repo>",
	Short: "Build an analysis database for a single project",
	Long: `Build clones one project and creates its analysis database.

The project is looked up in the store; an unregistered project can be built
directly by passing --url. The source checkout is removed once the database
is created, whether the build succeeded or not.

Examples:
  qlscan build facebook/react
  qlscan build acme/internal-tool --url https://github.com/acme/internal-tool --language javascript
  qlscan build facebook/react --force`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildLanguage, "language", "l", "", "analysis language (default: project language or configured default)")
	buildCmd.Flags().StringVar(&buildURL, "url", "", "clone URL for a project not in the store")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "rebuild even if a database already exists")
	buildCmd.Flags().BoolVar(&buildSkipExisting, "skip-existing", true, "skip projects with an existing database")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fullName := args[0]
	if !strings.Contains(fullName, "/") {
		exitWithError("project name must be qualified as owner/repo, got %q", fullName)
	}

	project, err := resolveProject(ctx, fullName, buildURL)
	if err != nil {
		return err
	}

	language := buildLanguage
	if language == "" {
		language = project.Language
	}
	if language == "" {
		language = cfg.DefaultLanguage
	}

	cloner := newCloner()
	manager := newManager()

	clonePath := clonePathFor(project.FullName)
	fmt.Printf("Cloning %s...\n", project.FullName)
	fetched, err := cloner.Fetch(ctx, project.URL, clonePath)
	if err != nil {
		return fmt.Errorf("fetch sources: %w", err)
	}
	defer cloner.Release(fetched.Path)

	fmt.Printf("Building %s database (this can take a while)...\n", language)
	start := time.Now()
	res := manager.Build(ctx, project.FullName, fetched.Path, language, codeql.Policy{
		SkipExisting: buildSkipExisting,
		Force:        buildForce,
	})

	switch res.Status {
	case codeql.StatusSkipped:
		fmt.Printf("Database already exists: %s\n", res.Path)
	case codeql.StatusCreated:
		fmt.Printf("Created %s in %s\n", res.Path, time.Since(start).Round(time.Second))
	case codeql.StatusError:
		return res.Err
	}
	return nil
}

// resolveProject looks fullName up in the store, falling back to a synthetic
// descriptor when a clone URL is supplied for an unregistered project.
func resolveProject(ctx context.Context, fullName, url string) (models.ProjectDescriptor, error) {
	project, err := dbClient.GetProjectByName(ctx, fullName)
	if err == nil {
		if url != "" {
			project.URL = url
		}
		return project, nil
	}
	if !isNotFound(err) {
		return models.ProjectDescriptor{}, err
	}
	if url == "" {
		url = "https://github.com/" + fullName
	}
	return models.ProjectDescriptor{FullName: fullName, URL: url}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}

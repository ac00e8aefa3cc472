package repomap

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// FileStats holds commit-derived metrics for one file path.
type FileStats struct {
	ChangeFreq       float64 // commits per month, normalized over LookbackMonths
	LastModified     time.Time
	ContributorCount int
}

// Hotspot is one entry in a change-frequency-ranked file list.
type Hotspot struct {
	FilePath         string
	ChangeFreq       float64
	ContributorCount int
	LastModified     time.Time
}

// maxHistoryCommits caps history walks for performance on large repos.
const maxHistoryCommits = 1000

// GitHistoryAnalyzer computes change-frequency metrics from a repository's
// commit history: commits per month per file, last-modified time, and
// contributor counts.
type GitHistoryAnalyzer struct {
	repo *git.Repository
}

// NewGitHistoryAnalyzer opens the git repository at repoPath.
func NewGitHistoryAnalyzer(repoPath string) (*GitHistoryAnalyzer, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("open git repository: %w", err)
	}
	return &GitHistoryAnalyzer{repo: repo}, nil
}

// ComputeChangeFreq writes ChangeFreq, and a last-modified/contributor-count
// pair into Attrs, onto every file/dir node whose Path matches a path seen
// in history.
func (a *GitHistoryAnalyzer) ComputeChangeFreq(nodes []*Node, lookbackMonths int) error {
	var hasPathNode bool
	for _, n := range nodes {
		if n.Path != "" && (n.Kind == KindFile || n.Kind == KindDir) {
			hasPathNode = true
			break
		}
	}
	if !hasPathNode {
		return nil
	}

	stats, err := a.fileStats(lookbackMonths)
	if err != nil {
		return err
	}

	for _, n := range nodes {
		if n.Path == "" {
			continue
		}
		s, ok := stats[n.Path]
		if !ok {
			continue
		}
		n.Metrics.ChangeFreq = s.ChangeFreq
		if n.Attrs == nil {
			n.Attrs = make(map[string]any)
		}
		n.Attrs["last_modified"] = s.LastModified
		n.Attrs["contributor_count"] = s.ContributorCount
	}
	return nil
}

// Hotspots returns the topN files by change frequency over the lookback
// window, descending.
func (a *GitHistoryAnalyzer) Hotspots(topN, lookbackMonths int) ([]Hotspot, error) {
	stats, err := a.fileStats(lookbackMonths)
	if err != nil {
		return nil, err
	}
	hotspots := make([]Hotspot, 0, len(stats))
	for path, s := range stats {
		hotspots = append(hotspots, Hotspot{
			FilePath: path, ChangeFreq: s.ChangeFreq,
			ContributorCount: s.ContributorCount, LastModified: s.LastModified,
		})
	}
	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].ChangeFreq != hotspots[j].ChangeFreq {
			return hotspots[i].ChangeFreq > hotspots[j].ChangeFreq
		}
		return hotspots[i].FilePath < hotspots[j].FilePath
	})
	if topN > 0 && len(hotspots) > topN {
		hotspots = hotspots[:topN]
	}
	return hotspots, nil
}

func (a *GitHistoryAnalyzer) fileStats(lookbackMonths int) (map[string]FileStats, error) {
	since := time.Now().AddDate(0, 0, -lookbackMonths*30)

	commitIter, err := a.repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime, Since: &since})
	if err != nil {
		return nil, fmt.Errorf("get commit log: %w", err)
	}

	fileCommits := make(map[string]map[string]bool) // file -> commit hash set
	fileAuthors := make(map[string]map[string]bool)
	fileLastModified := make(map[string]time.Time)

	count := 0
	err = commitIter.ForEach(func(c *object.Commit) error {
		if count >= maxHistoryCommits {
			return storer.ErrStop
		}
		count++

		files, ferr := commitFiles(c)
		if ferr != nil {
			return nil
		}
		hash := c.Hash.String()
		when := c.Author.When

		for _, f := range files {
			if fileCommits[f] == nil {
				fileCommits[f] = make(map[string]bool)
			}
			fileCommits[f][hash] = true
			if fileAuthors[f] == nil {
				fileAuthors[f] = make(map[string]bool)
			}
			fileAuthors[f][c.Author.Name] = true
			if existing, ok := fileLastModified[f]; !ok || when.After(existing) {
				fileLastModified[f] = when
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}

	months := lookbackMonths
	if months < 1 {
		months = 1
	}
	stats := make(map[string]FileStats, len(fileCommits))
	for path, commits := range fileCommits {
		stats[path] = FileStats{
			ChangeFreq:       float64(len(commits)) / float64(months),
			LastModified:     fileLastModified[path],
			ContributorCount: len(fileAuthors[path]),
		}
	}
	return stats, nil
}

func commitFiles(c *object.Commit) ([]string, error) {
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, err
		}
		changes, err := c.Patch(parent)
		if err != nil {
			return nil, err
		}
		var files []string
		for _, fs := range changes.Stats() {
			files = append(files, fs.Name)
		}
		return files, nil
	}

	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		files = append(files, f.Name)
		return nil
	})
	return files, err
}

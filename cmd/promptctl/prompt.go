package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"promptbuilder/internal/gateway/handler/rpc"
	"promptbuilder/internal/prompt"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the category catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := unary[rpc.Empty, rpc.ListCategoriesResponse](cmd.Context(), rpc.PromptServiceListCategoriesProcedure, &rpc.Empty{})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var (
	composeSelections []string
	composeKeepFace   bool
	composeKeepDress  bool
	composeTextOnly   bool
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose a prompt from category selections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sel, err := parseSelections(composeSelections)
		if err != nil {
			return err
		}
		req := &rpc.ComposeRequest{
			Selections: sel,
			Options:    &prompt.Options{KeepFace: composeKeepFace, KeepDress: composeKeepDress},
		}
		res, err := unary[rpc.ComposeRequest, rpc.ComposeResponse](cmd.Context(), rpc.PromptServiceComposeProcedure, req)
		if err != nil {
			return err
		}
		if composeTextOnly {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

// parseSelections reads category=id[,id...] pairs. Repeating a category
// appends ids.
func parseSelections(raw []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, s := range raw {
		cat, ids, ok := strings.Cut(s, "=")
		cat = strings.TrimSpace(cat)
		if !ok || cat == "" {
			return nil, fmt.Errorf("selection %q must look like category=id", s)
		}
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out[cat] = append(out[cat], id)
			}
		}
	}
	return out, nil
}

var refineCmd = &cobra.Command{
	Use:   "refine [prompt]",
	Short: "Rewrite a prompt with the model; reads stdin when no prompt is given",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			text = string(raw)
		}
		res, err := unary[rpc.RefineRequest, rpc.RefineResponse](cmd.Context(), rpc.PromptServiceRefineProcedure, &rpc.RefineRequest{Prompt: text})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

var analyzeMime string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Suggest taxonomy items from a reference image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		mime := analyzeMime
		if mime == "" {
			mime = http.DetectContentType(image)
		}
		res, err := unary[rpc.AnalyzeRequest, rpc.AnalyzeResponse](cmd.Context(), rpc.PromptServiceAnalyzeProcedure, &rpc.AnalyzeRequest{Image: image, MimeType: mime})
		if err != nil {
			return err
		}
		return output(cmd.OutOrStdout(), res)
	},
}

func init() {
	composeCmd.Flags().StringArrayVarP(&composeSelections, "select", "s", nil, "category=id[,id...] (repeatable); use __remove__ to remove")
	composeCmd.Flags().BoolVar(&composeKeepFace, "keep-face", false, "keep the existing face")
	composeCmd.Flags().BoolVar(&composeKeepDress, "keep-dress", true, "keep the existing dress")
	composeCmd.Flags().BoolVar(&composeTextOnly, "text", false, "print only the prompt text")
	analyzeCmd.Flags().StringVar(&analyzeMime, "mime", "", "image MIME type (detected when empty)")

	rootCmd.AddCommand(categoriesCmd, composeCmd, refineCmd, analyzeCmd)
}

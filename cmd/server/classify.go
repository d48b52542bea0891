package main

import (
	"fmt"

	"github.com/Brownie44l1/vgg-api/internal/model"
	"github.com/Brownie44l1/vgg-api/internal/pipeline"
	"github.com/Brownie44l1/vgg-api/internal/upload"
	"github.com/spf13/cobra"
)

var topK int

var classifyCmd = &cobra.Command{
	Use:   "classify <image>",
	Short: "Classify a local image file and print the top predictions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !upload.AllowedFile(path) {
			return fmt.Errorf("invalid file type: %s", path)
		}

		k := cfg.TopK
		if topK > 0 {
			k = topK
		}

		modelServer, err := model.NewServer(cfg.ModelPath, cfg.MetadataPath, cfg.ORTLibraryPath)
		if err != nil {
			return fmt.Errorf("failed to initialize model server: %w", err)
		}
		defer modelServer.Close()

		classifier, err := pipeline.NewFromServer(modelServer)
		if err != nil {
			return err
		}

		predictions, err := classifier.ClassifyFile(cmd.Context(), path, k)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, p := range predictions {
			fmt.Fprintf(out, "[%f] - %s\n", p.Confidence, p.Label)
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().IntVar(&topK, "top", 0, "Number of predictions to print (default from config)")
}

package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tourscan/internal/config"
	"github.com/sells-group/tourscan/internal/crawl"
	"github.com/sells-group/tourscan/internal/detect"
	"github.com/sells-group/tourscan/internal/prospect"
)

var (
	singlePhase    string
	singleMaxPages int
)

var singleCmd = &cobra.Command{
	Use:   "single <url>",
	Short: "Analyze one website and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := crawl.NormalizeURL(args[0])
		if err != nil {
			return err
		}

		crawler, err := newCrawler()
		if err != nil {
			return err
		}

		phase, err := pickPhase(singlePhase)
		if err != nil {
			return err
		}
		if singleMaxPages > 0 {
			phase.MaxPagesPerSite = singleMaxPages
		}

		result, err := crawler.Crawl(cmd.Context(), target, phase)
		if err != nil {
			return eris.Wrap(err, "single: analyze")
		}
		tier, confidence := prospect.Classify(result)

		out := struct {
			URL             string         `json:"url"`
			HasChatbot      bool           `json:"has_chatbot"`
			ChatbotTypes    []string       `json:"chatbot_types"`
			BookingTech     []string       `json:"booking_technology"`
			OTADependencies []string       `json:"ota_dependencies"`
			Details         detect.Details `json:"analysis_details"`
			Prospect        string         `json:"prospect_evaluation"`
			Confidence      string         `json:"analysis_confidence"`
			PagesAnalyzed   int            `json:"pages_analyzed"`
		}{
			URL:             target,
			HasChatbot:      result.HasChatbot,
			ChatbotTypes:    result.ChatbotTypes.Sorted(),
			BookingTech:     result.BookingTech.Sorted(),
			OTADependencies: result.OTADependencies.Sorted(),
			Details:         result.Details,
			Prospect:        string(tier),
			Confidence:      string(confidence),
			PagesAnalyzed:   result.PagesAnalyzed,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	singleCmd.Flags().StringVar(&singlePhase, "phase", "patient_retry", "phase settings to crawl with: aggressive, conservative_retry, or patient_retry")
	singleCmd.Flags().IntVar(&singleMaxPages, "max-pages", 0, "override the phase page limit")
	rootCmd.AddCommand(singleCmd)
}

func pickPhase(name string) (config.PhaseConfig, error) {
	for _, phase := range cfg.Phases.Sequence() {
		if phase.Name == name {
			return phase, nil
		}
	}
	return config.PhaseConfig{}, eris.Errorf("single: unknown phase %q", name)
}

package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/mobility-stats/internal/model"
)

// WriteXLSX writes a workbook with one sheet per section of s.
func WriteXLSX(w io.Writer, s *model.Stats) error {
	b := newBook()
	b.sheet("summary", []string{"total"}, [][]any{{s.Total}})
	b.frequencies("frequencies", s.Frequencies)
	b.frequencies("mode_frequencies", s.ModeFrequencies)
	b.emissions("mode_emissions", s.ModeEmissions)
	b.emissions("reco_mode_emissions", s.RecoModeEmissions)
	b.reductions("mode_emission_reductions", s.ModeEmissionReductions)
	b.links("mode_links", s.ModeLinks)
	b.frequencies("pro_frequencies", s.ProFrequencies)
	b.frequencies("pro_mode_frequencies", s.ProModeFrequencies)
	b.emissions("pro_mode_emissions", s.ProModeEmissions)
	b.emissions("reco_pro_mode_emissions", s.RecoProModeEmissions)
	b.links("pro_mode_links", s.ProModeLinks)
	return b.write(w)
}

// WriteCampaignXLSX writes the campaign summary and its weekly counts.
func WriteCampaignXLSX(w io.Writer, c *model.CampaignStats) error {
	b := newBook()
	b.sheet("campaign",
		[]string{"campaign_id", "name", "company_id", "nb_employees", "total_records", "completed_records"},
		[][]any{{c.CampaignID, c.Name, c.CompanyID, c.NbEmployees, c.TotalRecords, c.CompletedRecords}},
	)
	rows := make([][]any, 0, len(c.Weekly))
	for _, wk := range c.Weekly {
		rows = append(rows, []any{wk.Week, wk.Created, wk.Completed})
	}
	b.sheet("weekly", []string{"week", "created", "completed"}, rows)
	return b.write(w)
}

// book collects the first error so section writers can be chained.
type book struct {
	file *xlsx.File
	err  error
}

func newBook() *book {
	return &book{file: xlsx.NewFile()}
}

func (b *book) sheet(name string, header []string, rows [][]any) {
	if b.err != nil {
		return
	}
	sh, err := b.file.AddSheet(name)
	if err != nil {
		b.err = eris.Wrapf(err, "report: add sheet %s", name)
		return
	}
	hr := sh.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}
	for _, row := range rows {
		r := sh.AddRow()
		for _, v := range row {
			c := r.AddCell()
			switch x := v.(type) {
			case int:
				c.SetInt(x)
			case float64:
				c.SetFloat(x)
			case string:
				c.SetString(x)
			case nil:
			}
		}
	}
}

func (b *book) frequencies(name string, fs []model.Frequencies) {
	var rows [][]any
	for _, f := range fs {
		for _, bin := range f.Data {
			var sum any
			if bin.Sum != nil {
				sum = *bin.Sum
			}
			rows = append(rows, []any{f.Field, f.Total, bin.Value, bin.Count, sum})
		}
	}
	b.sheet(name, []string{"field", "total", "value", "count", "sum"}, rows)
}

func (b *book) emissions(name string, es []model.Emissions) {
	rows := make([][]any, 0, len(es))
	for _, e := range es {
		rows = append(rows, []any{e.Mode, e.Total, e.Distances, e.Journeys, e.Emissions})
	}
	b.sheet(name, []string{"mode", "total", "distances", "journeys", "emissions"}, rows)
}

func (b *book) reductions(name string, rs []model.EmissionReductions) {
	rows := make([][]any, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []any{r.Mode, r.Total, r.Reduced})
	}
	b.sheet(name, []string{"mode", "total", "reduced"}, rows)
}

func (b *book) links(name string, l model.Links) {
	rows := make([][]any, 0, len(l.Data))
	for _, e := range l.Data {
		rows = append(rows, []any{e.Source, e.Target, e.Value, l.Total})
	}
	b.sheet(name, []string{"source", "target", "value", "total"}, rows)
}

func (b *book) write(w io.Writer) error {
	if b.err != nil {
		return b.err
	}
	return eris.Wrap(b.file.Write(w), "report: write xlsx")
}

// Package pdf renders the inspection report document using maroto/v2.
// The document carries the property and location details, the recorded
// line items priced in UF (and CLP when a rate snapshot is available),
// the totals, and the owner's signature block.
package pdf

import (
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/rebuildcl/inspector/internal/models"
	"github.com/rebuildcl/inspector/internal/pricing"
)

var (
	colorPrimary   = &props.Color{Red: 17, Green: 24, Blue: 39}
	colorSecondary = &props.Color{Red: 107, Green: 114, Blue: 128}
	colorAccent    = &props.Color{Red: 37, Green: 99, Blue: 235}
	colorTableHead = &props.Color{Red: 241, Green: 245, Blue: 249}
	colorTableAlt  = &props.Color{Red: 249, Green: 250, Blue: 251}
	colorBorder    = &props.Color{Red: 226, Green: 232, Blue: 240}
)

// ReportData holds everything the report document renders.
type ReportData struct {
	InspectionID string
	Address      string
	Region       string
	City         string
	Commune      string
	Bedrooms     int
	Bathrooms    int
	InnerArea    float64
	VisitDate    time.Time

	InspectorName string

	Items []models.LineItem
	// ItemImages carries the decoded image bytes per item index; a nil
	// entry renders the row without a thumbnail.
	ItemImages [][]byte
	Rate       models.ExchangeRateSnapshot

	SignerName     string
	SignatureImage []byte // decoded PNG bytes of the drawn signature
	SignedAt       time.Time
}

// GenerateReportPDF renders the inspection report and returns the raw
// document bytes.
func GenerateReportPDF(data ReportData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(12).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	if err := m.RegisterFooter(buildFooter(data)); err != nil {
		return nil, fmt.Errorf("register footer: %w", err)
	}

	m.AddRows(buildHeader(data)...)
	m.AddRows(row.New(1).WithStyle(&props.Cell{
		BorderType:  border.Bottom,
		BorderColor: colorBorder,
	}))
	m.AddRows(row.New(6))

	m.AddRows(buildPropertyBlock(data)...)
	m.AddRows(row.New(6))

	m.AddRows(buildItemsTable(data)...)
	m.AddRows(row.New(4))

	m.AddRows(buildTotalsBlock(data)...)

	if data.SignerName != "" {
		m.AddRows(row.New(8))
		m.AddRows(buildSignatureBlock(data)...)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate PDF: %w", err)
	}

	return doc.GetBytes(), nil
}

func buildHeader(data ReportData) []core.Row {
	titleCol := col.New(8).Add(
		text.New("INFORME DE INSPECCIÓN", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Right,
			Color: colorAccent,
		}),
		text.New(data.InspectionID, props.Text{
			Size:  10,
			Align: align.Right,
			Color: colorSecondary,
			Top:   11,
		}),
	)

	brandCol := col.New(4).Add(
		text.New("RebuildCL", props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Color: colorPrimary,
			Top:   4,
		}),
	)

	return []core.Row{row.New(20).Add(brandCol, titleCol)}
}

func buildPropertyBlock(data ReportData) []core.Row {
	var rows []core.Row

	rows = append(rows, row.New(5).Add(
		col.New(7).Add(text.New("PROPIEDAD", props.Text{Size: 7, Style: fontstyle.Bold, Color: colorAccent})),
		col.New(5).Add(text.New("DETALLES", props.Text{Size: 7, Style: fontstyle.Bold, Color: colorAccent, Align: align.Right})),
	))

	rows = append(rows, row.New(5).Add(
		col.New(7).Add(text.New(data.Address, props.Text{Size: 9, Style: fontstyle.Bold, Color: colorPrimary})),
		col.New(5).Add(text.New("Visita: "+data.VisitDate.Format("02-01-2006"), props.Text{Size: 8, Color: colorSecondary, Align: align.Right})),
	))

	locality := joinParts([]string{data.Commune, data.City, data.Region}, ", ")
	rows = append(rows, row.New(5).Add(
		col.New(7).Add(text.New(locality, props.Text{Size: 8, Color: colorSecondary})),
		col.New(5).Add(text.New("Inspector: "+data.InspectorName, props.Text{Size: 8, Color: colorSecondary, Align: align.Right})),
	))

	specs := fmt.Sprintf("%d dormitorios  |  %d baños  |  %.0f m²", data.Bedrooms, data.Bathrooms, data.InnerArea)
	rows = append(rows, row.New(5).Add(
		col.New(12).Add(text.New(specs, props.Text{Size: 8, Color: colorSecondary})),
	))

	return rows
}

func buildItemsTable(data ReportData) []core.Row {
	var rows []core.Row

	rows = append(rows, row.New(7).Add(
		col.New(12).Add(text.New("PARTIDAS", props.Text{
			Size:  8,
			Style: fontstyle.Bold,
			Color: colorAccent,
		})),
	))

	headerStyle := props.Text{Size: 7.5, Style: fontstyle.Bold, Color: colorPrimary, Top: 1.5}
	headerStyleRight := props.Text{Size: 7.5, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right, Top: 1.5}

	header := row.New(7).Add(
		col.New(1).Add(text.New("Foto", headerStyle)),
		col.New(3).Add(text.New("Descripción", headerStyle)),
		col.New(2).Add(text.New("Partida", headerStyle)),
		col.New(1).Add(text.New("Cant.", headerStyleRight)),
		col.New(2).Add(text.New("P.U. (UF)", headerStyleRight)),
		col.New(3).Add(text.New(subtotalHeading(data.Rate), headerStyleRight)),
	).WithStyle(&props.Cell{
		BackgroundColor: colorTableHead,
		BorderType:      border.Bottom,
		BorderColor:     colorBorder,
	})
	rows = append(rows, header)

	for i, item := range data.Items {
		var img []byte
		if i < len(data.ItemImages) {
			img = data.ItemImages[i]
		}
		rows = append(rows, buildItemRow(item, img, data.Rate, i))
	}

	return rows
}

func subtotalHeading(rate models.ExchangeRateSnapshot) string {
	if rate.Success {
		return "Subtotal (CLP)"
	}
	return "Subtotal (UF)"
}

func buildItemRow(item models.LineItem, img []byte, rate models.ExchangeRateSnapshot, idx int) core.Row {
	normalStyle := props.Text{Size: 8, Color: colorPrimary, Top: 1}
	rightStyle := props.Text{Size: 8, Color: colorPrimary, Align: align.Right, Top: 1}

	subtotal := item.Subtotal.StringFixed(2) + " UF"
	if rate.Success {
		if clp, err := pricing.ConvertUFToCLP(item.Subtotal, rate.Rate); err == nil {
			subtotal = pricing.FormatCLP(clp)
		}
	}

	height := 7.0
	photoCol := col.New(1)
	if len(img) > 0 {
		height = 14
		photoCol.Add(image.NewFromBytes(img, extension.Png, props.Rect{Percent: 90}))
	}

	r := row.New(height).Add(
		photoCol,
		col.New(3).Add(text.New(item.Description, normalStyle)),
		col.New(2).Add(text.New(item.Category, normalStyle)),
		col.New(1).Add(text.New(item.Quantity.String(), rightStyle)),
		col.New(2).Add(text.New(item.UnitPrice.StringFixed(2), rightStyle)),
		col.New(3).Add(text.New(subtotal, rightStyle)),
	)

	if idx%2 == 0 {
		r.WithStyle(&props.Cell{BackgroundColor: colorTableAlt})
	}

	return r
}

func buildTotalsBlock(data ReportData) []core.Row {
	var rows []core.Row

	rows = append(rows, row.New(1).WithStyle(&props.Cell{
		BorderType:  border.Bottom,
		BorderColor: colorBorder,
	}))
	rows = append(rows, row.New(3))

	totalUF := decimal.Zero
	for _, item := range data.Items {
		totalUF = totalUF.Add(item.Subtotal)
	}

	labelStyle := props.Text{Size: 9, Color: colorSecondary, Align: align.Right}
	valueStyle := props.Text{Size: 9, Color: colorPrimary, Align: align.Right}

	rows = append(rows, row.New(6).Add(
		col.New(9).Add(text.New("Total UF", labelStyle)),
		col.New(3).Add(text.New(totalUF.StringFixed(2)+" UF", valueStyle)),
	))

	if data.Rate.Success {
		if totalCLP, err := pricing.ConvertUFToCLP(totalUF, data.Rate.Rate); err == nil {
			rows = append(rows, row.New(10).Add(
				col.New(9).Add(text.New("TOTAL CLP", props.Text{
					Size:  12,
					Style: fontstyle.Bold,
					Color: colorPrimary,
					Align: align.Right,
					Top:   2,
				})),
				col.New(3).Add(text.New(pricing.FormatCLP(totalCLP), props.Text{
					Size:  12,
					Style: fontstyle.Bold,
					Color: colorPrimary,
					Align: align.Right,
					Top:   2,
				})),
			).WithStyle(&props.Cell{
				BackgroundColor: colorTableHead,
				BorderType:      border.Full,
				BorderColor:     colorBorder,
			}))

			rateNote := fmt.Sprintf("Valor UF: %s (%s)", pricing.FormatCLP(decimal.NewFromFloat(data.Rate.Rate)), data.Rate.Date.Format("02-01-2006"))
			rows = append(rows, row.New(5).Add(
				col.New(12).Add(text.New(rateNote, props.Text{Size: 7, Color: colorSecondary, Align: align.Right, Top: 1})),
			))
		}
	} else {
		rows = append(rows, row.New(5).Add(
			col.New(12).Add(text.New("Valor UF no disponible; montos expresados en UF.", props.Text{
				Size:  7,
				Color: colorSecondary,
				Align: align.Right,
				Top:   1,
			})),
		))
	}

	return rows
}

func buildSignatureBlock(data ReportData) []core.Row {
	var rows []core.Row

	rows = append(rows, row.New(1).WithStyle(&props.Cell{
		BorderType:  border.Bottom,
		BorderColor: colorBorder,
	}))
	rows = append(rows, row.New(3))

	rows = append(rows, row.New(5).Add(
		col.New(12).Add(text.New("CONFORMIDAD DEL PROPIETARIO", props.Text{
			Size:  8,
			Style: fontstyle.Bold,
			Color: colorAccent,
		})),
	))

	rows = append(rows, row.New(6).Add(
		col.New(6).Add(text.New("Firmado por: "+data.SignerName, props.Text{
			Size:  9,
			Style: fontstyle.Bold,
			Color: colorPrimary,
		})),
		col.New(6).Add(text.New("Fecha: "+data.SignedAt.Format("02-01-2006 15:04"), props.Text{
			Size:  9,
			Color: colorSecondary,
			Align: align.Right,
		})),
	))

	if len(data.SignatureImage) > 0 {
		rows = append(rows,
			row.New(3),
			row.New(25).Add(
				col.New(2).Add(text.New("Firma:", props.Text{
					Size:  8,
					Color: colorSecondary,
					Top:   8,
				})),
				col.New(5).Add(
					image.NewFromBytes(data.SignatureImage, extension.Png, props.Rect{
						Center:  false,
						Percent: 90,
					}),
				),
				col.New(5),
			),
		)
	}

	return rows
}

func buildFooter(data ReportData) core.Row {
	footerText := joinParts([]string{
		"RebuildCL",
		"Inspección " + data.InspectionID,
		data.Address,
	}, "  ·  ")

	return row.New(10).Add(
		col.New(12).Add(
			text.New(footerText, props.Text{
				Size:  6.5,
				Color: colorSecondary,
				Align: align.Center,
				Top:   4,
			}),
		),
	).WithStyle(&props.Cell{
		BorderType:  border.Top,
		BorderColor: colorBorder,
	})
}

func joinParts(parts []string, sep string) string {
	result := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if result != "" {
			result += sep
		}
		result += p
	}
	return result
}

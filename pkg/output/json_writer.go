// Package output escribe el resultado de un escaneo de subred en archivos.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/asaavedra/printscan/pkg/sink"
)

// Nombres de archivo generados en el directorio de salida
const (
	PrintersFile = "printers.json"
	SummaryFile  = "scan_summary.json"
	ReportFile   = "scan_report.txt"
)

// ScanReport datos de un escaneo terminado
type ScanReport struct {
	Range     string
	Community string
	Started   time.Time
	Finished  time.Time
	Total     int
	Scanned   int
	Found     []sink.Detection
}

// ScanSummary contiene el resumen del escaneo
type ScanSummary struct {
	ScanStartTime   time.Time      `json:"scanStartTime"`
	ScanEndTime     time.Time      `json:"scanEndTime"`
	ScanDuration    string         `json:"scanDuration"`
	Range           string         `json:"range"`
	TotalHosts      int            `json:"totalHosts"`
	TotalScanned    int            `json:"totalScanned"`
	TotalFound      int            `json:"totalFound"`
	CommunityString string         `json:"communityString"`
	ByVendor        map[string]int `json:"byVendor"`
	DetectionRate   float64        `json:"detectionRate"`
}

// ScanOutput es el formato de salida JSON principal
type ScanOutput struct {
	ScanInfo *ScanSummary     `json:"scanInfo"`
	Printers []sink.Detection `json:"printers"`
}

// JSONWriter escribe los resultados en formato JSON
type JSONWriter struct {
	outputDir string
}

// NewJSONWriter crea un nuevo escritor JSON
func NewJSONWriter(outputDir string) *JSONWriter {
	return &JSONWriter{outputDir: outputDir}
}

// WriteScanResults escribe printers.json, scan_summary.json y el reporte de
// texto. Devuelve las rutas escritas.
func (jw *JSONWriter) WriteScanResults(report ScanReport) ([]string, error) {
	if err := os.MkdirAll(jw.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("error creando directorio de salida: %w", err)
	}

	found := report.Found
	if found == nil {
		found = []sink.Detection{}
	}
	summary := Summarize(report)

	printersPath := filepath.Join(jw.outputDir, PrintersFile)
	if err := jw.writeJSON(&ScanOutput{ScanInfo: summary, Printers: found}, printersPath); err != nil {
		return nil, fmt.Errorf("error escribiendo %s: %w", PrintersFile, err)
	}

	summaryPath := filepath.Join(jw.outputDir, SummaryFile)
	if err := jw.writeJSON(summary, summaryPath); err != nil {
		return nil, fmt.Errorf("error escribiendo %s: %w", SummaryFile, err)
	}

	reportPath := filepath.Join(jw.outputDir, ReportFile)
	if err := jw.writeReport(summary, found, reportPath); err != nil {
		return nil, err
	}

	return []string{printersPath, summaryPath, reportPath}, nil
}

// Summarize agrupa las detecciones por fabricante ("unknown" sin pista)
func Summarize(report ScanReport) *ScanSummary {
	summary := &ScanSummary{
		ScanStartTime:   report.Started,
		ScanEndTime:     report.Finished,
		ScanDuration:    fmt.Sprintf("%.1fs", report.Finished.Sub(report.Started).Seconds()),
		Range:           report.Range,
		TotalHosts:      report.Total,
		TotalScanned:    report.Scanned,
		TotalFound:      len(report.Found),
		CommunityString: report.Community,
		ByVendor:        make(map[string]int),
	}

	for _, d := range report.Found {
		vendor := "unknown"
		if d.VendorGuess != nil {
			vendor = *d.VendorGuess
		}
		summary.ByVendor[vendor]++
	}

	if report.Scanned > 0 {
		summary.DetectionRate = float64(len(report.Found)) / float64(report.Scanned) * 100.0
	}

	return summary
}

// writeJSON escribe un objeto a JSON
func (jw *JSONWriter) writeJSON(data any, filePath string) error {
	// SetEscapeHTML(false) para no escapar & como \u0026
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("error serializando JSON: %w", err)
	}

	if err := os.WriteFile(filePath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("error escribiendo archivo: %w", err)
	}

	return nil
}

// writeReport escribe un reporte legible en texto
func (jw *JSONWriter) writeReport(summary *ScanSummary, found []sink.Detection, reportPath string) error {
	file, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("error creando reporte: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "REPORTE DE ESCANEO SNMP DE IMPRESORAS\n")
	fmt.Fprintf(&buf, "=====================================\n\n")

	fmt.Fprintf(&buf, "Rango escaneado:        %s\n", summary.Range)
	fmt.Fprintf(&buf, "Total escaneado:        %d de %d IPs\n", summary.TotalScanned, summary.TotalHosts)
	fmt.Fprintf(&buf, "Impresoras encontradas: %d\n", summary.TotalFound)
	fmt.Fprintf(&buf, "Tasa de detección:      %.1f%%\n", summary.DetectionRate)
	fmt.Fprintf(&buf, "Tiempo de escaneo:      %s\n", summary.ScanDuration)
	fmt.Fprintf(&buf, "Inicio:                 %s\n", summary.ScanStartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&buf, "Final:                  %s\n\n", summary.ScanEndTime.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&buf, "IMPRESORAS POR FABRICANTE\n")
	fmt.Fprintf(&buf, "-------------------------\n")
	vendors := make([]string, 0, len(summary.ByVendor))
	for vendor := range summary.ByVendor {
		vendors = append(vendors, vendor)
	}
	sort.Strings(vendors)
	for _, vendor := range vendors {
		fmt.Fprintf(&buf, "%-20s: %d\n", vendor, summary.ByVendor[vendor])
	}

	fmt.Fprintf(&buf, "\nDETALLE DE IMPRESORAS\n")
	fmt.Fprintf(&buf, "---------------------\n")
	for i, d := range found {
		fmt.Fprintf(&buf, "\n[%d] %s\n", i+1, d.IP)
		fmt.Fprintf(&buf, "    sysDescr:    %s\n", d.SysDescr)
		if d.SysObjectID != nil {
			fmt.Fprintf(&buf, "    sysObjectID: %s\n", *d.SysObjectID)
		}
		if d.VendorGuess != nil {
			fmt.Fprintf(&buf, "    Fabricante:  %s\n", *d.VendorGuess)
		}
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("error escribiendo reporte: %w", err)
	}
	return nil
}

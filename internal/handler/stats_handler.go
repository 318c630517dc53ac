package handler

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/quizbattle/quizbattle-api/internal/domain/repository"
	"github.com/quizbattle/quizbattle-api/internal/service"
)

// StatsHandler обслуживает read-модели: профильную статистику и рейтинг.
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler создает новый обработчик статистики.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetUserStats обрабатывает GET /users/:id/stats
func (h *StatsHandler) GetUserStats(c *gin.Context) {
	userID := c.MustGet("statsUserID").(uint)

	stats, err := h.statsService.GetUserStats(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetRatingData обрабатывает GET /rating/data
func (h *StatsHandler) GetRatingData(c *gin.Context) {
	rows, err := h.statsService.GetRating()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// ExportRating обрабатывает GET /rating/export?format=csv|xlsx
func (h *StatsHandler) ExportRating(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	rows, err := h.statsService.GetRating()
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("rating_%s", time.Now().Format("2006-01-02"))
	switch format {
	case "xlsx":
		h.exportXLSX(c, rows, filename)
	default:
		h.exportCSV(c, rows, filename)
	}
}

// exportCSV отдает рейтинг в CSV с правильным экранированием спецсимволов
func (h *StatsHandler) exportCSV(c *gin.Context, rows []repository.RatingRow, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"Место", "Пользователь", "Побед", "Завершенных игр"})
	for i, r := range rows {
		writer.Write([]string{
			strconv.Itoa(i + 1),
			sanitizeForExcel(r.Username),
			strconv.Itoa(r.Wins),
			strconv.Itoa(r.GamesFinished),
		})
	}
}

// exportXLSX отдает рейтинг в Excel через StreamWriter
func (h *StatsHandler) exportXLSX(c *gin.Context, rows []repository.RatingRow, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Рейтинг"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[StatsHandler] Failed to create stream writer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"Место", "Пользователь", "Побед", "Завершенных игр"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[StatsHandler] Failed to write header row: %v", err)
	}

	for i, r := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{i + 1, sanitizeForExcel(r.Username), r.Wins, r.GamesFinished}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[StatsHandler] Failed to write row %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[StatsHandler] Failed to flush stream writer: %v", err)
	}
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[StatsHandler] Failed to write Excel response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

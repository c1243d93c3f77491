// Package reports holds the canned statistics queries over the wine dataset.
// Every query quotes its identifiers and groups by all selected columns so it
// runs unchanged on SQLite, DuckDB and PostgreSQL.
package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/xwines/xwines/internal/store"
)

var ErrNotFound = errors.New("reports: not found")

type Report struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Title string `json:"title"`
	SQL   string `json:"sql"`
}

var catalog = []Report{
	{
		ID: "1", Code: "P1", Title: "Distinct wine types",
		SQL: `SELECT DISTINCT "Type"
FROM "Wine"
ORDER BY "Type"`,
	},
	{
		ID: "2", Code: "P2", Title: "Wine with the highest alcohol content",
		SQL: `SELECT
      "WineID",
      "WineName",
      "ABV"
FROM "Wine"
WHERE "ABV" IS NOT NULL
ORDER BY "ABV" DESC
LIMIT 1`,
	},
	{
		ID: "3", Code: "P3", Title: "Average ABV of sparkling wines",
		SQL: `SELECT ROUND(CAST(AVG("ABV") AS NUMERIC), 2) AS "AverageSparklingABV"
FROM "Wine"
WHERE "Type" = 'Sparkling'`,
	},
	{
		ID: "4", Code: "P4", Title: "Wineries in the Douro",
		SQL: `SELECT
      T2."WineryID",
      T2."WineryName",
      T2."Website"
FROM "Wine" AS T1
      JOIN "Winery" AS T2 ON T1."WineryID" = T2."WineryID"
      JOIN "Region" AS T3 ON T1."RegionID" = T3."RegionID"
WHERE T3."RegionName" = 'Douro'
GROUP BY T2."WineryID", T2."WineryName", T2."Website"
ORDER BY T2."WineryName"`,
	},
	{
		ID: "5", Code: "P5", Title: "Wine types pairing with both beef and poultry",
		SQL: `SELECT T1."Type"
FROM "Wine" AS T1
      JOIN "Harmonize" AS T2 ON T1."WineID" = T2."WineID"
WHERE T2."Harmonize" = 'Beef'
INTERSECT
SELECT T1."Type"
FROM "Wine" AS T1
      JOIN "Harmonize" AS T2 ON T1."WineID" = T2."WineID"
WHERE T2."Harmonize" = 'Poultry'
ORDER BY 1`,
	},
	{
		ID: "6", Code: "P6", Title: "Top 10 regions by number of wines",
		SQL: `SELECT
      T2."RegionID",
      T2."RegionName",
      COUNT(T1."WineID") AS "TotalWines"
FROM "Wine" AS T1
      JOIN "Region" AS T2 ON T1."RegionID" = T2."RegionID"
GROUP BY T2."RegionID", T2."RegionName"
ORDER BY "TotalWines" DESC, T2."RegionID"
LIMIT 10`,
	},
	{
		ID: "7", Code: "P7", Title: "Average alcohol content per country",
		SQL: `SELECT
      T3."Code",
      T3."Country",
      ROUND(CAST(AVG(T1."ABV") AS NUMERIC), 2) AS "AverageABV"
FROM "Wine" AS T1
      JOIN "Region" AS T2 ON T1."RegionID" = T2."RegionID"
      JOIN "Countries" AS T3 ON T2."Code" = T3."Code"
WHERE T1."ABV" IS NOT NULL
GROUP BY T3."Code", T3."Country"
ORDER BY "AverageABV" DESC, T3."Code"`,
	},
	{
		ID: "8", Code: "P8", Title: "Wineries producing only high-acidity wines",
		SQL: `SELECT
      T1."WineryID",
      T1."WineryName"
FROM "Winery" AS T1
      JOIN "Wine" AS T2 ON T1."WineryID" = T2."WineryID"
GROUP BY T1."WineryID", T1."WineryName"
HAVING COUNT(T2."WineID") = COUNT(CASE WHEN T2."Acidity" = 'High' THEN T2."WineID" END)
      AND COUNT(T2."WineID") > 0
ORDER BY T1."WineryID"`,
	},
	{
		ID: "9", Code: "P9", Title: "Wineries present in more than one country",
		SQL: `SELECT
      T1."WineryID",
      T1."WineryName"
FROM "Winery" AS T1
      JOIN "Wine" AS T2 ON T1."WineryID" = T2."WineryID"
      JOIN "Region" AS T3 ON T2."RegionID" = T3."RegionID"
      JOIN "Countries" AS T4 ON T3."Code" = T4."Code"
GROUP BY T1."WineryID", T1."WineryName"
HAVING COUNT(DISTINCT T4."Code") > 1
ORDER BY T1."WineryID"`,
	},
	{
		ID: "10", Code: "P10", Title: "Wines made from more than one grape",
		SQL: `SELECT
      T1."WineID",
      T1."WineName",
      COUNT(T2."Grape") AS "GrapeCount"
FROM "Wine" AS T1
      JOIN "Grapes" AS T2 ON T1."WineID" = T2."WineID"
GROUP BY T1."WineID", T1."WineName"
HAVING COUNT(T2."Grape") > 1
ORDER BY T1."WineID"`,
	},
	{
		ID: "11", Code: "P11", Title: "Regions above their national average ABV",
		SQL: `WITH "CountryAverage" AS (
      SELECT C."Code", AVG(W."ABV") AS "CountryAvg"
      FROM "Wine" AS W
            JOIN "Region" AS R ON W."RegionID" = R."RegionID"
            JOIN "Countries" AS C ON C."Code" = R."Code"
      GROUP BY C."Code"
)
SELECT
      R."RegionID",
      R."RegionName",
      C."Country",
      ROUND(CAST(AVG(W."ABV") AS NUMERIC), 2) AS "RegionAvgABV",
      ROUND(CAST(A."CountryAvg" AS NUMERIC), 2) AS "CountryAvgABV"
FROM "Wine" AS W
      JOIN "Region" AS R ON W."RegionID" = R."RegionID"
      JOIN "Countries" AS C ON C."Code" = R."Code"
      JOIN "CountryAverage" AS A ON A."Code" = C."Code"
GROUP BY R."RegionID", R."RegionName", C."Country", A."CountryAvg"
HAVING AVG(W."ABV") > A."CountryAvg"
ORDER BY C."Country", "RegionAvgABV" DESC`,
	},
}

// List returns the reports in display order.
func List() []Report {
	out := make([]Report, len(catalog))
	copy(out, catalog)
	return out
}

// Get accepts either the numeric id or the code ("P4").
func Get(id string) (Report, error) {
	for _, report := range catalog {
		if report.ID == id || report.Code == id {
			return report, nil
		}
	}
	return Report{}, fmt.Errorf("%w: report %q", ErrNotFound, id)
}

func Run(ctx context.Context, st store.Store, id string) (Report, store.Result, error) {
	report, err := Get(id)
	if err != nil {
		return Report{}, store.Result{}, err
	}
	result, err := st.Query(ctx, report.SQL)
	if err != nil {
		return report, store.Result{}, fmt.Errorf("run report %s: %w", report.Code, err)
	}
	return report, result, nil
}

// Package domain models USGS streamflow data and the rules for turning a
// raw observation report into rows for the water_reports table.
//
// # Data Source
//
// Discharge readings come from the USGS Instantaneous Values service
// (https://waterservices.usgs.gov/nwis/iv/), requested in WaterML-JSON 1.1
// format with parameter code 00060 (discharge, cubic feet per second). One
// request covers every site code of a single state, so a report holds one
// time series per station.
//
// # Report Layout
//
//	value.timeSeries[]
//	  sourceInfo.siteCode[0].value   station code, e.g. "08086000"
//	  variable.unit.unitCode         e.g. "ft3/s"
//	  variable.noDataValue           sentinel for missing readings, e.g. -999999
//	  values[0].value[]              samples {value, dateTime, qualifiers}
//
// Samples arrive every 15 minutes with a local UTC offset, e.g.
// "2024-01-01T00:15:00.000-06:00". Values are decimal strings.
//
// # Downsampling
//
// Only on-the-hour samples (minute 0 in UTC) are kept. Retained samples are
// truncated to the hour and their values rendered with exactly two fractional
// digits ("512.3" becomes "512.30").
//
// # Identifiers
//
// Station codes belong to USGS. River identifiers belong to the river
// directory service and are what water_reports.river_id stores. A SiteIndex
// built from the resolved rivers maps one to the other; stations without a
// matching river are dropped.
package domain
